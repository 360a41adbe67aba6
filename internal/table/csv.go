package table

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/image-inspector/backend/internal/models"
)

// Delimiter separates CSV fields.
const Delimiter = ';'

// WriteCSV writes the header row and one row per record, in order.
func WriteCSV(w io.Writer, records []models.ImageMetadata) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, m := range records {
		if err := cw.Write(Row(m)); err != nil {
			return fmt.Errorf("writing row for %s: %w", m.FileName, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// ReadCSV reads a file written by WriteCSV and returns its header and rows.
func ReadCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = Delimiter
	cr.FieldsPerRecord = len(Columns)

	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("reading csv: missing header")
	}
	return all[0], all[1:], nil
}

// SaveCSV writes records to path, creating parent directories. The file
// is written to a temporary name first and renamed into place.
func SaveCSV(path string, records []models.ImageMetadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("opening %s for writing: %w", path, err)
	}

	bw := bufio.NewWriter(f)
	if err := WriteCSV(bw, records); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming export: %w", err)
	}
	return nil
}

// SavedStatus is the status line shown after a successful export.
func SavedStatus(path string) string {
	return "CSV saved: " + path
}

// WriteText writes an aligned plain-text table for terminals.
func WriteText(w io.Writer, records []models.ImageMetadata) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(Columns, "\t"))
	for _, m := range records {
		fmt.Fprintln(tw, strings.Join(Row(m), "\t"))
	}
	return tw.Flush()
}
