// Package report renders the printable cable quality report.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"fiberqc/internal/models"
	"fiberqc/internal/qc"
)

//go:embed report.html.tmpl
var files embed.FS

var tmpl = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"upper":     strings.ToUpper,
	"km":        func(v float64) string { return fmt.Sprintf("%g km", v) },
	"dbkm":      func(v float64) string { return fmt.Sprintf("%g dB/km", v) },
	"mm":        func(v float64) string { return fmt.Sprintf("%gmm", v) },
	"date":      displayDate,
	"colorCSS":  colorCSS,
	"passClass": passClass,
	"isShort":   qc.IsShort,
}).ParseFS(files, "report.html.tmpl"))

type view struct {
	Cable       models.Cable
	Fibers      []models.CableFiberDetail
	QCCheck     *models.QCCheck
	OpticalKM   string
	GeneratedAt time.Time
}

// Render writes the report for one cable aggregate. The document asks the
// browser to print itself once loaded.
func Render(w io.Writer, agg *models.CableAggregate, generatedAt time.Time) error {
	v := view{
		Cable:       agg.Cable,
		Fibers:      agg.Fibers,
		QCCheck:     agg.QCCheck,
		GeneratedAt: generatedAt,
	}
	if l, ok := qc.CableOpticalLength(agg.Fibers); ok {
		v.OpticalKM = fmt.Sprintf("%.2f km", l)
	}
	return tmpl.Execute(w, v)
}

// displayDate trims stored timestamps to their date part.
func displayDate(s string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// colorCSS maps a fiber color name to a CSS color keyword.
func colorCSS(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "slate":
		return "slategray"
	case "rose":
		return "pink"
	case "natural":
		return "ivory"
	}
	for _, r := range name {
		if r < 'a' || r > 'z' {
			return "transparent"
		}
	}
	if name == "" {
		return "transparent"
	}
	return name
}

func passClass(status string) string {
	switch status {
	case qc.Pass, qc.CableQCPassed, qc.CableCompleted:
		return "status-pass"
	}
	return "status-fail"
}
