package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/image-inspector/backend/internal/models"
	"github.com/image-inspector/backend/internal/scanner"
	"github.com/image-inspector/backend/internal/table"
)

type scanOptions struct {
	csvPath    string
	batchSize  int
	extensions []string
	quiet      bool
}

func newScanCmd(opts *globalOptions) *cobra.Command {
	so := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan FOLDER",
		Short: "Inspect the images in a folder and print the table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := opts.consoleLogger()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			so.applyDefaults(cfg.Scan.Extensions, cfg.Scan.BatchSize)
			status := cmd.ErrOrStderr()
			if so.quiet {
				status = io.Discard
			}

			records, err := runScan(args[0], so, log, status)
			if err != nil {
				return err
			}
			if err := table.WriteText(cmd.OutOrStdout(), records); err != nil {
				return fmt.Errorf("failed to print table: %w", err)
			}
			return saveCSV(so.csvPath, records, status)
		},
	}

	cmd.Flags().StringVar(&so.csvPath, "csv", "", "also save the table as a ';'-delimited CSV file")
	cmd.Flags().IntVar(&so.batchSize, "batch-size", 0, "records per progress update (config value when 0)")
	cmd.Flags().StringSliceVar(&so.extensions, "ext", nil, "file extensions to include (config value when unset)")
	cmd.Flags().BoolVarP(&so.quiet, "quiet", "q", false, "suppress status lines")
	return cmd
}

func (o *scanOptions) applyDefaults(extensions []string, batchSize int) {
	if len(o.extensions) == 0 {
		o.extensions = extensions
	}
	if o.batchSize <= 0 {
		o.batchSize = batchSize
	}
}

// runScan lists folder and scans it with one worker goroutine feeding one
// consumer, printing a status line per message.
func runScan(folder string, o *scanOptions, log *zap.Logger, status io.Writer) ([]models.ImageMetadata, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolving folder: %w", err)
	}
	paths, err := scanner.ListFolder(abs, o.extensions)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(status, scanner.StatusLoading)

	sc := scanner.New(scanner.WithBatchSize(o.batchSize), scanner.WithLogger(log))
	store := table.NewStore()
	msgs := make(chan scanner.Message)

	var g errgroup.Group
	g.Go(func() error {
		sc.Run(paths, msgs)
		return nil
	})
	g.Go(func() error {
		for msg := range msgs {
			if batch, ok := msg.(scanner.BatchLoaded); ok {
				store.Append(batch.Records)
			}
			fmt.Fprintln(status, msg.Status())
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return store.Records(), nil
}

func saveCSV(path string, records []models.ImageMetadata, status io.Writer) error {
	if path == "" {
		return nil
	}
	if err := table.SaveCSV(path, records); err != nil {
		return err
	}
	fmt.Fprintln(status, table.SavedStatus(path))
	return nil
}
