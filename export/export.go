// Package export hands ordered quotes to files for downstream consumers.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dynergy/tariff-compare/models"
)

// OutputWriter defines the interface for quote output.
type OutputWriter interface {
	Write(quotes []models.TariffQuote) error
	Close() error
	Validate() error
}

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatDual = "dual"
)

// NewWriter opens a writer for format. For FormatDual the extension of
// filename is replaced by .csv and .jsonl.
func NewWriter(format, filename string) (OutputWriter, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return NewCSVWriter(filename)
	case FormatJSON:
		return NewJSONWriter(filename)
	case FormatDual:
		base := strings.TrimSuffix(filename, filepath.Ext(filename))
		cw, err := NewCSVWriter(base + ".csv")
		if err != nil {
			return nil, err
		}
		jw, err := NewJSONWriter(base + ".jsonl")
		if err != nil {
			cw.Close()
			return nil, err
		}
		return NewMultiWriter(cw, jw), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// WriteFile writes quotes in order, closes the writer and validates the output.
func WriteFile(format, filename string, quotes []models.TariffQuote) error {
	w, err := NewWriter(format, filename)
	if err != nil {
		return err
	}
	if err := w.Write(quotes); err != nil {
		return errors.Join(err, w.Close())
	}
	if err := w.Close(); err != nil {
		return err
	}
	return w.Validate()
}
