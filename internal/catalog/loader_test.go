package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

var alfalfaColumns = Columns{ID: "AGCNr", RA: "RAdeg_OC", Dec: "DECdeg_OC"}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	path := "./test.csv"
	loader := NewLoader(path, alfalfaColumns)

	if loader.path != path {
		t.Errorf("Expected path %s, got %s", path, loader.path)
	}
	if loader.columns != alfalfaColumns {
		t.Errorf("Expected columns %+v, got %+v", alfalfaColumns, loader.columns)
	}
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "a100.csv", `AGCNr,RAdeg_OC,DECdeg_OC,lgMHI
1,10.0,20.0,9.1
2,11.0,21.0,9.2
3.0,12.5,-22.25,9.3
`)

	cat, err := NewLoader(path, alfalfaColumns).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cat.Len() != 3 {
		t.Fatalf("Expected 3 rows, got %d", cat.Len())
	}

	want := []Row{
		{ID: "1", RA: 10, Dec: 20, Line: 2},
		{ID: "2", RA: 11, Dec: 21, Line: 3},
		{ID: "3", RA: 12.5, Dec: -22.25, Line: 4},
	}
	for i, w := range want {
		got := cat.Rows[i]
		if got.ID != w.ID || got.RA != w.RA || got.Dec != w.Dec || got.Line != w.Line {
			t.Errorf("Row %d: expected %+v, got %+v", i, w, got)
		}
	}

	if cat.Rows[0].Extra["lgMHI"] != "9.1" {
		t.Errorf("Expected extra column lgMHI=9.1, got %q", cat.Rows[0].Extra["lgMHI"])
	}
	if _, ok := cat.Rows[0].Extra["AGCNr"]; ok {
		t.Error("Expected mapped columns to be excluded from Extra")
	}
}

func TestLoadTSV(t *testing.T) {
	path := writeFile(t, "nibles.tsv", "nibles_id\tra\tdec\n"+
		"N1\t150.1\t2.2\n"+
		"N2\t150.2\t2.3\n")

	cat, err := NewLoader(path, Columns{ID: "nibles_id", RA: "ra", Dec: "dec"}).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cat.Len() != 2 {
		t.Errorf("Expected 2 rows, got %d", cat.Len())
	}
	if cat.Rows[1].ID != "N2" {
		t.Errorf("Expected id N2, got %s", cat.Rows[1].ID)
	}
}

func TestLoadJSONL(t *testing.T) {
	path := writeFile(t, "nibles.jsonl", `{"nibles_id": 101, "ra": 150.1, "dec": 2.2, "env": "field"}
{"nibles_id": "102", "ra": "150.2", "dec": 2.3}

{"nibles_id": 103, "ra": 150.3, "dec": 2.4}
`)

	cat, err := NewLoader(path, Columns{ID: "nibles_id", RA: "ra", Dec: "dec"}).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cat.Len() != 3 {
		t.Fatalf("Expected 3 rows, got %d", cat.Len())
	}
	if cat.Rows[0].ID != "101" || cat.Rows[0].Extra["env"] != "field" {
		t.Errorf("Unexpected first row: %+v", cat.Rows[0])
	}
	if cat.Rows[1].RA != 150.2 {
		t.Errorf("Expected string coordinate to parse, got %v", cat.Rows[1].RA)
	}
}

func TestLoadJSONArray(t *testing.T) {
	path := writeFile(t, "nibles.json", `
  [
    {"nibles_id": 101, "ra": 150.1, "dec": 2.2},
    {"nibles_id": 102, "ra": 150.2, "dec": 2.3}
  ]
`)

	cat, err := NewLoader(path, Columns{ID: "nibles_id", RA: "ra", Dec: "dec"}).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("Expected 2 rows, got %d", cat.Len())
	}
	if cat.Rows[1].ID != "102" || cat.Rows[1].Dec != 2.3 {
		t.Errorf("Unexpected second row: %+v", cat.Rows[1])
	}

	sample, err := NewLoader(path, Columns{ID: "nibles_id", RA: "ra", Dec: "dec"}).LoadSample(1)
	if err != nil {
		t.Fatalf("LoadSample failed: %v", err)
	}
	if sample.Len() != 1 {
		t.Errorf("Expected 1 row from sample, got %d", sample.Len())
	}
}

type parquetGalaxy struct {
	AGCNr  int64   `parquet:"AGCNr"`
	RA     float64 `parquet:"RAdeg_OC"`
	Dec    float64 `parquet:"DECdeg_OC"`
	LgMHI  float64 `parquet:"lgMHI"`
	Source string  `parquet:"source"`
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a100.parquet")
	rows := []parquetGalaxy{
		{AGCNr: 1, RA: 10, Dec: 20, LgMHI: 9.5, Source: "a100"},
		{AGCNr: 2, RA: 11, Dec: 21, LgMHI: 9.75, Source: "a100"},
		{AGCNr: 3, RA: 12, Dec: 22, LgMHI: 10, Source: "a100"},
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("Failed to write parquet: %v", err)
	}

	cat, err := NewLoader(path, alfalfaColumns).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cat.Len() != 3 {
		t.Fatalf("Expected 3 rows, got %d", cat.Len())
	}
	if cat.Rows[1].ID != "2" || cat.Rows[1].RA != 11 || cat.Rows[1].Dec != 21 {
		t.Errorf("Unexpected second row: %+v", cat.Rows[1])
	}
	if cat.Rows[1].Extra["lgMHI"] != "9.75" {
		t.Errorf("Expected lgMHI=9.75, got %q", cat.Rows[1].Extra["lgMHI"])
	}
	if cat.Rows[2].Extra["source"] != "a100" {
		t.Errorf("Expected source=a100, got %q", cat.Rows[2].Extra["source"])
	}

	sample, err := NewLoader(path, alfalfaColumns).LoadSample(2)
	if err != nil {
		t.Fatalf("LoadSample failed: %v", err)
	}
	if sample.Len() != 2 {
		t.Errorf("Expected 2 sampled rows, got %d", sample.Len())
	}
}

func TestLoadParquetMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a100.parquet")
	if err := parquet.WriteFile(path, []parquetGalaxy{{AGCNr: 1, RA: 1, Dec: 1}}); err != nil {
		t.Fatalf("Failed to write parquet: %v", err)
	}

	_, err := NewLoader(path, Columns{ID: "AGCNr", RA: "ra", Dec: "DECdeg_OC"}).Load()
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Expected ErrMissingColumn, got %v", err)
	}
}

func TestLoadSample(t *testing.T) {
	path := writeFile(t, "a100.csv", `AGCNr,RAdeg_OC,DECdeg_OC
1,10,20
2,11,21
3,12,22
`)

	cat, err := NewLoader(path, alfalfaColumns).LoadSample(2)
	if err != nil {
		t.Fatalf("LoadSample failed: %v", err)
	}
	if cat.Len() != 2 {
		t.Errorf("Expected 2 records, got %d", cat.Len())
	}
}

func TestLoadMalformedRows(t *testing.T) {
	tests := []struct {
		name    string
		content string
		column  string
		line    int
	}{
		{
			name:    "missing coordinate",
			content: "AGCNr,RAdeg_OC,DECdeg_OC\n1,10,20\n2,,21\n",
			column:  "RAdeg_OC",
			line:    3,
		},
		{
			name:    "non numeric coordinate",
			content: "AGCNr,RAdeg_OC,DECdeg_OC\n1,10,abc\n",
			column:  "DECdeg_OC",
			line:    2,
		},
		{
			name:    "non finite coordinate",
			content: "AGCNr,RAdeg_OC,DECdeg_OC\n1,NaN,20\n",
			column:  "RAdeg_OC",
			line:    2,
		},
		{
			name:    "declination out of range",
			content: "AGCNr,RAdeg_OC,DECdeg_OC\n1,10,95\n",
			column:  "DECdeg_OC",
			line:    2,
		},
		{
			name:    "empty identifier",
			content: "AGCNr,RAdeg_OC,DECdeg_OC\n ,10,20\n",
			column:  "AGCNr",
			line:    2,
		},
		{
			name:    "identifier with path separator",
			content: "AGCNr,RAdeg_OC,DECdeg_OC\n../etc,10,20\n",
			column:  "AGCNr",
			line:    2,
		},
		{
			name:    "conflicting duplicate identifier",
			content: "AGCNr,RAdeg_OC,DECdeg_OC\n1,10,20\n1,11,21\n",
			column:  "AGCNr",
			line:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.csv", tt.content)

			_, err := NewLoader(path, alfalfaColumns).Load()
			if !errors.Is(err, ErrMalformedRow) {
				t.Fatalf("Expected ErrMalformedRow, got %v", err)
			}

			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				t.Fatalf("Expected *RowError, got %T", err)
			}
			if rowErr.Column != tt.column {
				t.Errorf("Expected column %s, got %s", tt.column, rowErr.Column)
			}
			if rowErr.Line != tt.line {
				t.Errorf("Expected line %d, got %d", tt.line, rowErr.Line)
			}
		})
	}
}

func TestLoadDropsExactDuplicates(t *testing.T) {
	path := writeFile(t, "dup.csv", "AGCNr,RAdeg_OC,DECdeg_OC\n1,10,20\n1,10,20\n2,11,21\n")

	cat, err := NewLoader(path, alfalfaColumns).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cat.Len() != 2 {
		t.Errorf("Expected 2 rows after dropping duplicate, got %d", cat.Len())
	}
}

func TestLoadMissingColumn(t *testing.T) {
	path := writeFile(t, "a100.csv", "AGCNr,ra,dec\n1,10,20\n")

	_, err := NewLoader(path, alfalfaColumns).Load()
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Expected ErrMissingColumn, got %v", err)
	}
}

func TestLoadEmpty(t *testing.T) {
	tests := map[string]string{
		"no rows":    "AGCNr,RAdeg_OC,DECdeg_OC\n",
		"empty file": "",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "empty.csv", content)
			_, err := NewLoader(path, alfalfaColumns).Load()
			if !errors.Is(err, ErrEmpty) {
				t.Errorf("Expected ErrEmpty, got %v", err)
			}
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	loader := NewLoader("test.txt", alfalfaColumns)

	if _, err := loader.Load(); err == nil {
		t.Error("Expected error for unsupported format, got nil")
	}
	if _, err := loader.LoadSample(10); err == nil {
		t.Error("Expected error for unsupported format in LoadSample, got nil")
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	loader := NewLoader("/nonexistent/path/file.csv", alfalfaColumns)

	if _, err := loader.Load(); err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

func TestLoadRequiresColumnMapping(t *testing.T) {
	loader := NewLoader("a.csv", Columns{ID: "AGCNr"})
	if _, err := loader.Load(); err == nil {
		t.Error("Expected error for incomplete column mapping, got nil")
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1234", want: "1234"},
		{in: " 1234 ", want: "1234"},
		{in: "1234.0", want: "1234"},
		{in: "1234.000", want: "1234"},
		{in: "J0912+01.5", want: "J0912+01.5"},
		{in: "GASS3505", want: "GASS3505"},
		{in: "", wantErr: true},
		{in: "..", wantErr: true},
		{in: "a/b", wantErr: true},
		{in: `a\b`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %q", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
