package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"github.com/spf13/cobra"

	"github.com/image-inspector/backend/internal/models"
	"github.com/image-inspector/backend/internal/parser"
	"github.com/image-inspector/backend/internal/scanner"
	"github.com/image-inspector/backend/internal/table"
)

func newTagsCmd(opts *globalOptions) *cobra.Command {
	var (
		raw        bool
		parserName string
	)

	cmd := &cobra.Command{
		Use:   "tags FILE",
		Short: "Print the table row and the EXIF/TIFF tags of one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := opts.consoleLogger()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			rec := scanner.New(scanner.WithLogger(log)).Inspect(path)
			if parserName != "" {
				p, err := parser.GetGlobalRegistry().GetParserByName(parserName)
				if err != nil {
					return err
				}
				forceParser(&rec, p, path)
			}
			if err := writeRecord(out, rec); err != nil {
				return err
			}
			fmt.Fprintln(out)

			if raw || parser.Sniff(path) == models.FormatTIFF {
				return dumpTIFF(out, path)
			}
			return dumpEXIF(out, path)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "dump the raw first TIFF directory instead of named EXIF fields")
	cmd.Flags().StringVar(&parserName, "parser", "", `parse with this parser regardless of the sniffed format ("PCX Header", "TIFF Tags", "Image Decoder")`)
	return cmd
}

// forceParser re-parses path with p. The record keeps its sniffed format;
// only an unrecognised file takes the format of a single-format parser.
func forceParser(rec *models.ImageMetadata, p parser.Parser, path string) {
	if formats := p.Formats(); rec.Format == models.FormatUnknown && len(formats) == 1 {
		rec.Format = formats[0]
	}
	p.Parse(path, rec.Format).Apply(rec)
}

func writeRecord(w io.Writer, rec models.ImageMetadata) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, v := range table.Row(rec) {
		fmt.Fprintf(tw, "%s:\t%s\n", table.Columns[i], v)
	}
	return tw.Flush()
}

type fieldCollector map[string]string

func (c fieldCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	c[string(name)] = strings.Trim(tag.String(), `"`)
	return nil
}

// dumpEXIF prints the named EXIF fields, sorted by name.
func dumpEXIF(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		fmt.Fprintln(w, "No EXIF data")
		return nil
	}
	fields := fieldCollector{}
	if err := x.Walk(fields); err != nil {
		return fmt.Errorf("walking exif: %w", err)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", name, fields[name])
	}
	return tw.Flush()
}

// dumpTIFF prints every tag of the first image file directory.
func dumpTIFF(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	dir, err := parser.ReadFirstIFD(f, info.Size())
	if err != nil {
		fmt.Fprintln(w, "No TIFF directories")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, tag := range dir.Tags {
		fmt.Fprintf(tw, "IFD0\t0x%04X\ttype %d\t%s\n", tag.Id, tag.Type, tag.String())
	}
	return tw.Flush()
}
