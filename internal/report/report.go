// Package report turns evaluation data into deliverable documents.
package report

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/evaluate"
	"github.com/finbot-dev/finbot/internal/model"
)

// View selects what a text report shows.
type View string

const (
	ViewDashboard View = "dashboard"
	ViewSummary   View = "summary"
	ViewDetailed  View = "detailed"
)

// Payload is the data a renderer works from. Renderers never read the ledger.
type Payload struct {
	View         View
	Result       evaluate.Result
	Transactions []model.Transaction
}

// Document is a rendered report.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Renderer writes a Payload in one format.
type Renderer interface {
	Render(p Payload) (Document, error)
	Format() string
}

// Unsupported lists formats that are recognized but have no renderer.
var Unsupported = []string{"pdf", "xlsx", "chart"}

// Registry holds renderers by format.
type Registry struct {
	renderers map[string]Renderer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[string]Renderer)}
}

// Register adds a renderer. Panics on duplicate format.
func (r *Registry) Register(rd Renderer) {
	key := strings.ToLower(rd.Format())
	if _, ok := r.renderers[key]; ok {
		panic("duplicate report format: " + key)
	}
	r.renderers[key] = rd
}

// Get returns the renderer for format, or nil.
func (r *Registry) Get(format string) Renderer {
	return r.renderers[strings.ToLower(format)]
}

// Formats returns the registered formats, sorted.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.renderers))
	for k := range r.renderers {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Render renders p in format. An unknown or unsupported format is a ValidationFailure.
func (r *Registry) Render(format string, p Payload) (Document, error) {
	const op = "report.Render"
	rd := r.Get(format)
	if rd == nil {
		if slices.Contains(Unsupported, strings.ToLower(format)) {
			return Document{}, apperr.New(apperr.ValidationFailure, op, "format not supported: "+format)
		}
		return Document{}, apperr.New(apperr.ValidationFailure, op, "unknown format: "+format)
	}
	doc, err := rd.Render(p)
	if err != nil {
		return Document{}, fmt.Errorf("rendering %s: %w", format, err)
	}
	return doc, nil
}

// DefaultRegistry returns a registry with the text and csv renderers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TextRenderer{})
	r.Register(CSVRenderer{})
	return r
}

func fileName(res evaluate.Result, view View, ext string) string {
	var b bytes.Buffer
	b.WriteString("finbot")
	if view != "" {
		b.WriteString("-" + string(view))
	}
	if res.Period != "" {
		b.WriteString("-" + res.Period)
	}
	b.WriteString("." + ext)
	return b.String()
}
