// Package manifest joins a catalog with a directory of fetched cutouts and
// produces a labelled training manifest.
package manifest

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/skysurvey/cutouts/internal/catalog"
	"github.com/skysurvey/cutouts/internal/cutout"
	"github.com/skysurvey/cutouts/internal/runstore"
)

// DefaultSeed matches the seed the training scripts use by default.
const DefaultSeed = 12345

var ErrOptions = errors.New("invalid manifest options")

// Entry is one training example.
type Entry struct {
	ID         string  `parquet:"id" yaml:"id"`
	Image      string  `parquet:"image" yaml:"image"`
	Label      float64 `parquet:"label" yaml:"label"`
	Validation bool    `parquet:"validation" yaml:"validation"`
}

// Options controls labelling and the train/validation split.
type Options struct {
	// Label is the column holding the regression target.
	Label string
	// LabelMinus, when set, is subtracted from Label (logfgas = lgMHI - lgMstar).
	LabelMinus string

	// SplitColumn and SplitValue mark rows whose column equals the value as
	// validation. When SplitColumn is empty, ValPct of the kept rows are
	// chosen at random using Seed.
	SplitColumn string
	SplitValue  string
	ValPct      float64
	Seed        uint64
}

// Validate reports inconsistent options.
func (o Options) Validate() error {
	if o.Label == "" {
		return fmt.Errorf("%w: label column is required", ErrOptions)
	}
	if o.SplitColumn == "" && (o.ValPct < 0 || o.ValPct >= 1) {
		return fmt.Errorf("%w: validation fraction must be in [0, 1), got %g", ErrOptions, o.ValPct)
	}
	if o.SplitColumn != "" && o.SplitValue == "" {
		return fmt.Errorf("%w: split value is required with split column %q", ErrOptions, o.SplitColumn)
	}
	return nil
}

// Stats summarises how the catalog was reduced to the manifest.
type Stats struct {
	Rows         int `yaml:"rows"`
	MissingImage int `yaml:"missing_image"`
	BadLabel     int `yaml:"bad_label"`
	Kept         int `yaml:"kept"`
	Validation   int `yaml:"validation"`
}

// Build keeps the rows of cat that have a cutout in imageDir and a numeric
// label. Image paths are relative to imageDir's parent, the way the training
// scripts resolve "{folder}/{id}.jpg".
func Build(cat *catalog.Catalog, imageDir string, opts Options) ([]Entry, Stats, error) {
	var stats Stats
	if err := opts.Validate(); err != nil {
		return nil, stats, err
	}

	imageDir = cutout.CleanOutputDir(imageDir)
	folder := filepath.Base(imageDir)

	entries := make([]Entry, 0, len(cat.Rows))
	for _, row := range cat.Rows {
		stats.Rows++

		ok, err := runstore.Exists(cutout.Path(imageDir, row.ID))
		if err != nil {
			return nil, stats, fmt.Errorf("check cutout for %s: %w", row.ID, err)
		}
		if !ok {
			stats.MissingImage++
			continue
		}

		label, err := labelFor(row, opts)
		if err != nil {
			slog.Debug("Dropping row without usable label", "id", row.ID, "error", err)
			stats.BadLabel++
			continue
		}

		entry := Entry{
			ID:    row.ID,
			Image: filepath.ToSlash(filepath.Join(folder, row.ID+cutout.Extension)),
			Label: label,
		}
		if opts.SplitColumn != "" {
			entry.Validation = strings.TrimSpace(row.Extra[opts.SplitColumn]) == opts.SplitValue
		}
		entries = append(entries, entry)
	}

	if opts.SplitColumn == "" {
		randomSplit(entries, opts.ValPct, opts.Seed)
	}

	stats.Kept = len(entries)
	for _, e := range entries {
		if e.Validation {
			stats.Validation++
		}
	}
	return entries, stats, nil
}

func labelFor(row catalog.Row, opts Options) (float64, error) {
	v, err := numericColumn(row, opts.Label)
	if err != nil {
		return 0, err
	}
	if opts.LabelMinus == "" {
		return v, nil
	}
	m, err := numericColumn(row, opts.LabelMinus)
	if err != nil {
		return 0, err
	}
	return v - m, nil
}

func numericColumn(row catalog.Row, col string) (float64, error) {
	raw, ok := row.Extra[col]
	if !ok {
		return 0, fmt.Errorf("column %q missing", col)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", col, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("column %q is not finite", col)
	}
	return v, nil
}

// randomSplit flags round(pct*n) entries as validation, chosen by a seeded
// permutation so the split is reproducible.
func randomSplit(entries []Entry, pct float64, seed uint64) {
	n := int(math.Round(pct * float64(len(entries))))
	if n == 0 {
		return
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	for _, i := range rng.Perm(len(entries))[:n] {
		entries[i].Validation = true
	}
}
