// Package views renders controller snapshots as HTML. Every function here is
// a pure function of its input: views never touch controller state and only
// describe forms that post actions back to the server.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/eightd/eightd/internal/constants"
	"github.com/eightd/eightd/internal/version"
	"github.com/eightd/eightd/internal/workflow"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

//go:embed templates/style.css
var Stylesheet []byte

// Names of the individually renderable views.
const (
	ViewPage     = "page"
	ViewDropZone = "dropzone"
	ViewSliders  = "sliders"
	ViewBusy     = "busy"
	ViewUpload   = "upload"
	ViewNotice   = "notice"
	ViewConfirm  = "confirm"
)

var templates = template.Must(template.New("views").Funcs(template.FuncMap{
	"humanBytes": HumanBytes,
	"percent":    func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
}).ParseFS(templateFS, "templates/*.html.tmpl"))

// Page is the data every view receives.
type Page struct {
	Snapshot       workflow.Snapshot
	MaxUploadMB    int
	RefreshSeconds int
	Version        string

	PanningMin, PanningMax     int
	AmplitudeMin, AmplitudeMax int
}

// NewPage wraps snap with the display settings views need.
func NewPage(snap workflow.Snapshot, maxUploadMB int) Page {
	if maxUploadMB <= 0 {
		maxUploadMB = constants.DefaultMaxUploadMB
	}
	return Page{
		Snapshot:       snap,
		MaxUploadMB:    maxUploadMB,
		RefreshSeconds: constants.BusyRefreshSeconds,
		Version:        version.Version,
		PanningMin:     constants.PanningFrequencyMin,
		PanningMax:     constants.PanningFrequencyMax,
		AmplitudeMin:   constants.AmplitudeMin,
		AmplitudeMax:   constants.AmplitudeMax,
	}
}

// Render writes one named view. Output is buffered so a template error never
// leaves a half-written response.
func Render(w io.Writer, view string, page Page) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, view, page); err != nil {
		return fmt.Errorf("render %s: %w", view, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// RenderPage writes the full HTML document.
func RenderPage(w io.Writer, page Page) error {
	return Render(w, ViewPage, page)
}

// HumanBytes formats a size for display.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
