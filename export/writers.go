package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dynergy/tariff-compare/models"
)

var csvHeader = []string{"provider_id", "tariff_name", "tariff_type", "monthly_cost", "annual_cost", "source_kind", "avg_kwh_price"}

// sink is the buffered file both formats write through. It counts quotes so
// Validate can reject an export that holds only a header.
type sink struct {
	mu     sync.Mutex
	format string
	file   *os.File
	buf    *bufio.Writer
	quotes int
}

func openSink(format, filename string) (*sink, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create %s file: %w", format, err)
	}
	return &sink{format: format, file: f, buf: bufio.NewWriter(f)}, nil
}

func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("flush %s file: %w", s.format, err)
	}
	return s.file.Close()
}

func (s *sink) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quotes == 0 {
		return fmt.Errorf("%s file has no quotes", s.format)
	}
	info, err := os.Stat(s.file.Name())
	if err != nil {
		return fmt.Errorf("stat %s file: %w", s.format, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s file is empty", s.format)
	}
	return nil
}

// CSVWriter writes one row per quote below a fixed header.
type CSVWriter struct {
	*sink
	rows *csv.Writer
}

// NewCSVWriter creates filename (and its directory) and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	s, err := openSink(FormatCSV, filename)
	if err != nil {
		return nil, err
	}
	cw := &CSVWriter{sink: s, rows: csv.NewWriter(s.buf)}
	if err := cw.rows.Write(csvHeader); err != nil {
		s.file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

// Write appends quotes in the order given.
func (cw *CSVWriter) Write(quotes []models.TariffQuote) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, q := range quotes {
		if err := cw.rows.Write(quoteRecord(q)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.quotes++
	}
	cw.rows.Flush()
	return cw.rows.Error()
}

// Close flushes pending rows, the header included, then closes the file.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	cw.rows.Flush()
	err := cw.rows.Error()
	cw.mu.Unlock()
	if err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv rows: %w", err)
	}
	return cw.sink.Close()
}

func quoteRecord(q models.TariffQuote) []string {
	kwh := ""
	if q.AvgKwhPrice > 0 {
		kwh = strconv.FormatFloat(q.AvgKwhPrice, 'f', -1, 64)
	}
	return []string{
		q.ProviderID,
		q.TariffName,
		string(q.TariffType),
		strconv.FormatFloat(q.MonthlyCost, 'f', 2, 64),
		strconv.FormatFloat(q.AnnualCost, 'f', 2, 64),
		string(q.SourceKind),
		kwh,
	}
}

// JSONWriter writes newline-delimited JSON, one quote per line.
type JSONWriter struct {
	*sink
	enc *json.Encoder
}

// NewJSONWriter creates filename (and its directory).
func NewJSONWriter(filename string) (*JSONWriter, error) {
	s, err := openSink(FormatJSON, filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{sink: s, enc: json.NewEncoder(s.buf)}, nil
}

// Write appends quotes in the order given.
func (jw *JSONWriter) Write(quotes []models.TariffQuote) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, q := range quotes {
		if err := jw.enc.Encode(q); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		jw.quotes++
	}
	return nil
}
