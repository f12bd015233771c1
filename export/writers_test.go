package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dynergy/tariff-compare/models"
)

func sampleQuotes() []models.TariffQuote {
	return []models.TariffQuote{
		{ProviderID: "tibber", TariffName: "Tibber Pulse", TariffType: models.TariffDynamic, MonthlyCost: 88, AnnualCost: 1056, SourceKind: models.SourceScraped},
		{ProviderID: "enbw", TariffName: "EnBW Fix", TariffType: models.TariffFixed, MonthlyCost: 99.5, AnnualCost: 1194, SourceKind: models.SourceCalculated, AvgKwhPrice: 0.341},
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotes.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("validate should fail before any quote is written")
	}
	if err := writer.Write(sampleQuotes()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if records[0][0] != "provider_id" || records[0][4] != "annual_cost" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][0] != "tibber" || records[2][0] != "enbw" {
		t.Fatalf("order not preserved: %v", records[1:])
	}
	if records[2][3] != "99.50" || records[2][6] != "0.341" {
		t.Fatalf("unexpected cost formatting: %v", records[2])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotes.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Write(sampleQuotes()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var decoded []models.TariffQuote
	for scanner.Scan() {
		var q models.TariffQuote
		if err := json.Unmarshal(scanner.Bytes(), &q); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		decoded = append(decoded, q)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if len(decoded) != 2 || decoded[1].SourceKind != models.SourceCalculated {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestWriteFileDual(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "quotes.csv")

	if err := WriteFile(FormatDual, path, sampleQuotes()); err != nil {
		t.Fatalf("write file: %v", err)
	}

	for _, name := range []string{"quotes.csv", "quotes.jsonl"} {
		info, err := os.Stat(filepath.Join(dir, "out", name))
		if err != nil || info.Size() == 0 {
			t.Fatalf("%s missing or empty", name)
		}
	}
}

func TestWriteFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.csv")
	if err := WriteFile(FormatCSV, path, nil); err == nil {
		t.Fatalf("expected validation error for empty output")
	}
}

func TestNewWriterUnknownFormat(t *testing.T) {
	if _, err := NewWriter("xml", filepath.Join(t.TempDir(), "quotes.xml")); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]models.TariffQuote) error { return f.err }
func (f failingWriter) Close() error { return f.err }
func (f failingWriter) Validate() error { return f.err }

func TestMultiWriterReportsEveryFailure(t *testing.T) {
	first := errors.New("disk full")
	second := errors.New("permission denied")
	m := NewMultiWriter(failingWriter{first}, failingWriter{second})

	err := m.Close()
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("close err = %v, want both failures", err)
	}
	if err := m.Write(sampleQuotes()); !errors.Is(err, first) {
		t.Fatalf("write err = %v, want first failure", err)
	}
}

func TestCSVWriterHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "provider_id,tariff_name,tariff_type,monthly_cost,annual_cost,source_kind,avg_kwh_price\n" {
		t.Fatalf("unexpected content %q", data)
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("header-only export should not validate")
	}
}
