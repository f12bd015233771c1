package export

import (
	"errors"
	"fmt"

	"github.com/dynergy/tariff-compare/models"
)

// MultiWriter fans every call out to several writers and reports all of
// their failures together.
type MultiWriter struct {
	writers []OutputWriter
}

// NewMultiWriter returns a writer over ws, in order.
func NewMultiWriter(ws ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Write(quotes []models.TariffQuote) error {
	for i, w := range m.writers {
		if err := w.Write(quotes); err != nil {
			return fmt.Errorf("writer %d: %w", i, err)
		}
	}
	return nil
}

func (m *MultiWriter) Close() error {
	return m.each(OutputWriter.Close)
}

func (m *MultiWriter) Validate() error {
	return m.each(OutputWriter.Validate)
}

func (m *MultiWriter) each(fn func(OutputWriter) error) error {
	var errs []error
	for _, w := range m.writers {
		if err := fn(w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
