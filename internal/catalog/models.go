package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRow is wrapped by every row-level validation failure.
	ErrMalformedRow = errors.New("malformed catalog row")
	// ErrMissingColumn is returned when the catalog lacks a mapped column.
	ErrMissingColumn = errors.New("missing catalog column")
	// ErrEmpty is returned when a catalog has no rows.
	ErrEmpty = errors.New("catalog is empty")
)

// Columns maps the catalog's column names onto the fields the fetcher needs.
// Each survey integration names these differently.
type Columns struct {
	ID  string `yaml:"id"`
	RA  string `yaml:"ra"`
	Dec string `yaml:"dec"`
}

// Validate checks that every mapping is set.
func (c Columns) Validate() error {
	if c.ID == "" || c.RA == "" || c.Dec == "" {
		return fmt.Errorf("column mapping requires id, ra and dec (got id=%q ra=%q dec=%q)", c.ID, c.RA, c.Dec)
	}
	return nil
}

// Row is one astronomical object.
type Row struct {
	// ID is the filename stem of the object's cutout.
	ID  string
	RA  float64
	Dec float64

	// Extra holds every unmapped column verbatim.
	Extra map[string]string

	// Line is the 1-based position of the row in its source file.
	Line int
}

// Catalog is an ordered set of rows with unique IDs.
type Catalog struct {
	Path    string
	Columns Columns
	Rows    []Row
}

// Len returns the number of rows.
func (c *Catalog) Len() int {
	return len(c.Rows)
}

// RowError describes why a single catalog row was rejected.
type RowError struct {
	Line   int
	ID     string
	Column string
	Reason string
}

func (e *RowError) Error() string {
	msg := fmt.Sprintf("line %d", e.Line)
	if e.ID != "" {
		msg += fmt.Sprintf(" (id %s)", e.ID)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(", column %q", e.Column)
	}
	return fmt.Sprintf("%s: %s", msg, e.Reason)
}

func (e *RowError) Unwrap() error {
	return ErrMalformedRow
}
