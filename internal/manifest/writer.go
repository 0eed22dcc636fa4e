package manifest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/skysurvey/cutouts/internal/runstore"
)

var csvHeader = []string{"id", "image", "label", "validation"}

// Write stores entries at path; the format follows the extension
// (.parquet or .csv).
func Write(path string, entries []Entry) error {
	var buf bytes.Buffer

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		if err := parquet.Write(&buf, entries); err != nil {
			return fmt.Errorf("encode parquet manifest: %w", err)
		}
	case ".csv":
		if err := writeCSV(&buf, entries); err != nil {
			return fmt.Errorf("encode csv manifest: %w", err)
		}
	default:
		return fmt.Errorf("unsupported manifest format %q (want .parquet or .csv)", ext)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := runstore.WriteBytes(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

func writeCSV(buf *bytes.Buffer, entries []Entry) error {
	w := csv.NewWriter(buf)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			e.ID,
			e.Image,
			strconv.FormatFloat(e.Label, 'g', -1, 64),
			strconv.FormatBool(e.Validation),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
