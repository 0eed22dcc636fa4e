package catalog

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Loader reads a catalog file and maps its columns onto Rows.
type Loader struct {
	path    string
	columns Columns
}

// NewLoader creates a new catalog loader
func NewLoader(path string, columns Columns) *Loader {
	return &Loader{
		path:    path,
		columns: columns,
	}
}

// Load reads every row of the catalog
func (l *Loader) Load() (*Catalog, error) {
	return l.load(0)
}

// LoadSample reads the first limit valid rows. A limit <= 0 reads everything.
func (l *Loader) LoadSample(limit int) (*Catalog, error) {
	return l.load(limit)
}

func (l *Loader) load(limit int) (*Catalog, error) {
	if err := l.columns.Validate(); err != nil {
		return nil, err
	}

	b := newBuilder(l.columns, limit)

	var err error
	switch ext := strings.ToLower(filepath.Ext(l.path)); ext {
	case ".csv":
		err = l.loadDelimited(',', b)
	case ".tsv", ".tab":
		err = l.loadDelimited('\t', b)
	case ".jsonl", ".json":
		err = l.loadJSONL(b)
	case ".parquet":
		err = l.loadParquet(b)
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s (supported: .csv, .tsv, .jsonl, .parquet)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", l.path, err)
	}

	if len(b.rows) == 0 {
		return nil, fmt.Errorf("load catalog %s: %w", l.path, ErrEmpty)
	}

	slog.Debug("Loaded catalog", "path", l.path, "rows", len(b.rows))

	return &Catalog{Path: l.path, Columns: l.columns, Rows: b.rows}, nil
}

func (l *Loader) requireColumns(have func(string) bool) error {
	for _, name := range []string{l.columns.ID, l.columns.RA, l.columns.Dec} {
		if !have(name) {
			return fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	return nil
}

// loadDelimited reads CSV or TSV with a header row
func (l *Loader) loadDelimited(comma rune, b *builder) error {
	file, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comma = comma
	r.TrimLeadingSpace = true
	r.Comment = '#'

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmpty
		}
		return fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	if err := l.requireColumns(func(name string) bool {
		_, ok := index[name]
		return ok
	}); err != nil {
		return err
	}

	for !b.full() {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to parse catalog: %w", err)
		}
		line, _ := r.FieldPos(0)

		fields := make(map[string]string, len(header))
		for i, name := range header {
			fields[name] = record[i]
		}
		if err := b.add(line, fields); err != nil {
			return err
		}
	}
	return nil
}

// loadJSONL reads one JSON object per line. A file whose first token is
// '[' is read as a JSON array of objects instead.
func (l *Loader) loadJSONL(b *builder) error {
	file, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	array, err := startsWithArray(r)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	if array {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("failed to parse JSON array: %w", err)
		}
	}

	lineNum := 0
	for !b.full() {
		if array && !dec.More() {
			break
		}
		var obj map[string]any
		err := dec.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		lineNum++
		if err != nil {
			return fmt.Errorf("failed to parse JSON at record %d: %w", lineNum, err)
		}

		fields := make(map[string]string, len(obj))
		for k, v := range obj {
			fields[k] = jsonString(v)
		}
		if err := b.add(lineNum, fields); err != nil {
			return err
		}
	}
	return nil
}

// startsWithArray skips leading whitespace and a BOM and reports whether the
// next byte opens a JSON array. Nothing but the skipped bytes is consumed.
func startsWithArray(r *bufio.Reader) (bool, error) {
	for {
		c, _, err := r.ReadRune()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		switch c {
		case ' ', '\t', '\r', '\n', '\ufeff':
			continue
		}
		if err := r.UnreadRune(); err != nil {
			return false, err
		}
		return c == '[', nil
	}
}

func jsonString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

// loadParquet reads a flat Parquet file, addressing columns by name
func (l *Loader) loadParquet(b *builder) error {
	file, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return fmt.Errorf("failed to open parquet: %w", err)
	}

	paths := pf.Schema().Columns()
	names := make([]string, len(paths))
	index := make(map[string]bool, len(paths))
	for i, path := range paths {
		names[i] = strings.Join(path, ".")
		index[names[i]] = true
	}
	if err := l.requireColumns(func(name string) bool { return index[name] }); err != nil {
		return err
	}

	slog.Debug("Parquet catalog opened", "path", l.path, "num_rows", pf.NumRows(), "columns", len(names))

	reader := parquet.NewReader(pf)
	defer reader.Close()

	rows := make([]parquet.Row, 128)
	lineNum := 0
	for !b.full() {
		n, err := reader.ReadRows(rows)
		for _, row := range rows[:n] {
			if b.full() {
				break
			}
			lineNum++
			fields := make(map[string]string, len(names))
			for _, v := range row {
				col := v.Column()
				if col < 0 || col >= len(names) || v.IsNull() {
					continue
				}
				fields[names[col]] = parquetString(v)
			}
			if addErr := b.add(lineNum, fields); addErr != nil {
				return addErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return nil
}

func parquetString(v parquet.Value) string {
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
