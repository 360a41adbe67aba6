package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/image-inspector/backend/internal/table"
	"github.com/image-inspector/backend/internal/watch"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	so := &scanOptions{}
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch FOLDER",
		Short: "Scan a folder and rescan it whenever its images change",
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

			folder, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving folder: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			status := cmd.ErrOrStderr()
			if so.quiet {
				status = io.Discard
			}
			w := watch.New(folder, so.extensions, debounce, log.Named("watch"))
			return runWatch(ctx, w, folder, so, log, cmd.OutOrStdout(), status)
		},
	}

	cmd.Flags().StringVar(&so.csvPath, "csv", "", "rewrite this CSV file after every scan")
	cmd.Flags().IntVar(&so.batchSize, "batch-size", 0, "records per progress update (config value when 0)")
	cmd.Flags().StringSliceVar(&so.extensions, "ext", nil, "file extensions to include (config value when unset)")
	cmd.Flags().BoolVarP(&so.quiet, "quiet", "q", false, "suppress status lines")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a rescan")
	return cmd
}

// runWatch prints the table once, then again after each change, until ctx
// is done. Changes that arrive during a scan coalesce into one rescan.
func runWatch(ctx context.Context, w *watch.Watcher, folder string, so *scanOptions, log *zap.Logger, out, status io.Writer) error {
	changed := make(chan struct{}, 1)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	})
	g.Go(func() error {
		for {
			records, err := runScan(folder, so, log, status)
			if err != nil {
				return err
			}
			if err := table.WriteText(out, records); err != nil {
				return fmt.Errorf("failed to print table: %w", err)
			}
			if err := saveCSV(so.csvPath, records, status); err != nil {
				log.Error("failed to save csv", zap.String("path", so.csvPath), zap.Error(err))
			}

			select {
			case <-ctx.Done():
				return nil
			case <-changed:
				fmt.Fprintln(out)
			}
		}
	})
	return g.Wait()
}
