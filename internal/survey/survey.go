// Package survey describes the public cutout services the fetcher can target.
package survey

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/skysurvey/cutouts/internal/catalog"
)

// Params are the size parameters fixed for a whole run. Legacy uses
// PixScale and Size, SDSS uses Width and Height.
type Params struct {
	PixScale float64 `yaml:"pixscale"`
	Size     int     `yaml:"size"`
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	Layer    string  `yaml:"layer"`
}

// URLBuilder maps sky coordinates to a cutout URL.
type URLBuilder func(ra, dec float64) string

// Survey is one cutout service integration.
type Survey struct {
	Name        string
	Description string

	// BaseURL is the cutout endpoint without query parameters.
	BaseURL string

	// Sleep is the delay after each network fetch.
	Sleep time.Duration

	Defaults       Params
	Columns        catalog.Columns
	DefaultOutput  string
	DefaultCatalog string

	build func(base string, p Params, ra, dec float64) string
	check func(p Params) error
}

// Builder binds the survey to base and p. An empty base uses s.BaseURL.
func (s Survey) Builder(base string, p Params) URLBuilder {
	if base == "" {
		base = s.BaseURL
	}
	return func(ra, dec float64) string {
		return s.build(base, p, ra, dec)
	}
}

// Validate reports size parameters the service cannot serve.
func (s Survey) Validate(p Params) error {
	return s.check(p)
}

const (
	Legacy = "legacy"
	SDSS   = "sdss"
)

var registry = map[string]Survey{
	Legacy: {
		Name:           Legacy,
		Description:    "DESI Legacy Imaging Surveys viewer, grz color JPEG",
		BaseURL:        "https://www.legacysurvey.org/viewer/cutout.jpg",
		Sleep:          100 * time.Millisecond,
		Defaults:       Params{PixScale: 0.262, Size: 448, Layer: "dr8"},
		Columns:        catalog.Columns{ID: "AGCNr", RA: "RAdeg_OC", Dec: "DECdeg_OC"},
		DefaultOutput:  "images-legacy",
		DefaultCatalog: "data/a100.code12.tab1.180315.csv",
		build:          legacyURL,
		check: func(p Params) error {
			if p.PixScale <= 0 {
				return fmt.Errorf("legacy: pixscale must be positive, got %g", p.PixScale)
			}
			if p.Size <= 0 {
				return fmt.Errorf("legacy: size must be positive, got %d", p.Size)
			}
			if p.Layer == "" {
				return fmt.Errorf("legacy: layer is required")
			}
			return nil
		},
	},
	SDSS: {
		Name:           SDSS,
		Description:    "SDSS DR14 SkyServer ImgCutout, gri color JPEG",
		BaseURL:        "http://skyserver.sdss.org/dr14/SkyserverWS/ImgCutout/getjpeg",
		Sleep:          30 * time.Millisecond,
		Defaults:       Params{Width: 224, Height: 224},
		Columns:        catalog.Columns{ID: "nibles_id", RA: "ra", Dec: "dec"},
		DefaultOutput:  "images-nibles",
		DefaultCatalog: "data/NIBLES_data.csv",
		build:          sdssURL,
		check: func(p Params) error {
			if p.Width <= 0 || p.Height <= 0 {
				return fmt.Errorf("sdss: width and height must be positive, got %dx%d", p.Width, p.Height)
			}
			return nil
		},
	},
}

// Lookup returns the survey registered under name.
func Lookup(name string) (Survey, error) {
	s, ok := registry[name]
	if !ok {
		return Survey{}, fmt.Errorf("unknown survey %q (known: %v)", name, Names())
	}
	return s, nil
}

// Names lists registered surveys in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func legacyURL(base string, p Params, ra, dec float64) string {
	q := url.Values{}
	q.Set("ra", formatFloat(ra))
	q.Set("dec", formatFloat(dec))
	q.Set("pixscale", formatFloat(p.PixScale))
	q.Set("layer", p.Layer)
	q.Set("size", strconv.Itoa(p.Size))
	return base + "?" + q.Encode()
}

func sdssURL(base string, p Params, ra, dec float64) string {
	q := url.Values{}
	q.Set("ra", formatFloat(ra))
	q.Set("dec", formatFloat(dec))
	q.Set("width", strconv.Itoa(p.Width))
	q.Set("height", strconv.Itoa(p.Height))
	return base + "?" + q.Encode()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
