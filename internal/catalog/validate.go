package catalog

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// builder turns raw records into validated rows.
type builder struct {
	cols  Columns
	rows  []Row
	seen  map[string]int
	limit int
}

func newBuilder(cols Columns, limit int) *builder {
	return &builder{
		cols:  cols,
		seen:  make(map[string]int),
		limit: limit,
	}
}

// full reports whether the sample limit has been reached.
func (b *builder) full() bool {
	return b.limit > 0 && len(b.rows) >= b.limit
}

func (b *builder) add(line int, fields map[string]string) error {
	rawID, ok := fields[b.cols.ID]
	if !ok {
		return &RowError{Line: line, Column: b.cols.ID, Reason: "missing identifier"}
	}
	id, err := normalizeID(rawID)
	if err != nil {
		return &RowError{Line: line, Column: b.cols.ID, Reason: err.Error()}
	}

	ra, err := parseCoordinate(fields, b.cols.RA, 0, 360)
	if err != nil {
		return &RowError{Line: line, ID: id, Column: b.cols.RA, Reason: err.Error()}
	}
	dec, err := parseCoordinate(fields, b.cols.Dec, -90, 90)
	if err != nil {
		return &RowError{Line: line, ID: id, Column: b.cols.Dec, Reason: err.Error()}
	}

	if idx, dup := b.seen[id]; dup {
		prev := b.rows[idx]
		if prev.RA == ra && prev.Dec == dec {
			slog.Warn("Dropping duplicate catalog row", "id", id, "line", line, "first_line", prev.Line)
			return nil
		}
		return &RowError{
			Line:   line,
			ID:     id,
			Column: b.cols.ID,
			Reason: fmt.Sprintf("duplicate identifier conflicts with line %d (ra=%g dec=%g)", prev.Line, prev.RA, prev.Dec),
		}
	}

	extra := make(map[string]string, len(fields))
	for k, v := range fields {
		if k == b.cols.ID || k == b.cols.RA || k == b.cols.Dec {
			continue
		}
		extra[k] = v
	}

	b.seen[id] = len(b.rows)
	b.rows = append(b.rows, Row{ID: id, RA: ra, Dec: dec, Extra: extra, Line: line})
	return nil
}

// normalizeID trims the identifier, drops an integral ".0" suffix written by
// numeric exporters, and rejects anything that is not a safe filename stem.
func normalizeID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("empty identifier")
	}

	if dot := strings.IndexByte(id, '.'); dot > 0 && strings.Trim(id[dot+1:], "0") == "" {
		if _, err := strconv.ParseInt(id[:dot], 10, 64); err == nil {
			id = id[:dot]
		}
	}

	if id == "." || id == ".." || strings.ContainsAny(id, "/\\\x00") {
		return "", fmt.Errorf("identifier %q is not a valid file name", id)
	}
	return id, nil
}

func parseCoordinate(fields map[string]string, column string, lo, hi float64) (float64, error) {
	raw, ok := fields[column]
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("missing coordinate")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("coordinate %q is not a number", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("coordinate %q is not finite", raw)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("coordinate %g outside [%g, %g]", v, lo, hi)
	}
	return v, nil
}
