// Package progress renders fetch progress as a single line rewritten in place.
package progress

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cheggaaa/pb/v3"
)

// Reporter receives progress after every catalog row.
type Reporter interface {
	Start(total int)
	Update(processed int)
	Finish()
}

// Style selects a Reporter implementation.
type Style string

const (
	StyleLine Style = "line"
	StyleBar  Style = "bar"
	StyleNone Style = "none"
)

// ParseStyle validates a style name.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleLine, StyleBar, StyleNone:
		return Style(s), nil
	}
	return "", fmt.Errorf("unknown progress style %q (line, bar or none)", s)
}

// New returns the reporter for style writing to w.
func New(style Style, w io.Writer) Reporter {
	switch style {
	case StyleBar:
		return NewBar(w)
	case StyleNone:
		return Nop{}
	default:
		return NewLine(w)
	}
}

// clearLine returns the cursor to column 0 and erases the line.
const clearLine = "\r\x1b[K"

// Status formats the percentage line shown after each row.
func Status(processed, total int) string {
	pct := 0.0
	if total > 0 {
		pct = float64(processed) / float64(total) * 100
	}
	return fmt.Sprintf("%.3f%% of %d completed.", pct, total)
}

// Line rewrites one status line on every update.
type Line struct {
	w     io.Writer
	total int
}

func NewLine(w io.Writer) *Line {
	return &Line{w: w}
}

func (l *Line) Start(total int) {
	l.total = total
}

func (l *Line) Update(processed int) {
	fmt.Fprint(l.w, clearLine+Status(processed, l.total))
}

func (l *Line) Finish() {
	fmt.Fprintln(l.w)
}

const barTemplate pb.ProgressBarTemplate = `{{percent . "%.3f%%"}} of {{string . "total"}} completed. {{bar . }} {{etime . }}`

// Bar draws a terminal progress bar refreshed in place.
type Bar struct {
	w   io.Writer
	bar *pb.ProgressBar
}

func NewBar(w io.Writer) *Bar {
	return &Bar{w: w}
}

func (b *Bar) Start(total int) {
	b.bar = barTemplate.New(total)
	b.bar.SetWriter(b.w)
	b.bar.Set("total", strconv.Itoa(total))
	b.bar.Start()
}

func (b *Bar) Update(processed int) {
	if b.bar == nil {
		return
	}
	b.bar.SetCurrent(int64(processed))
}

func (b *Bar) Finish() {
	if b.bar == nil {
		return
	}
	b.bar.Finish()
}

// Nop discards progress.
type Nop struct{}

func (Nop) Start(int)  {}
func (Nop) Update(int) {}
func (Nop) Finish()    {}
