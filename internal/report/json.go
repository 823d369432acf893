package report

import (
	"encoding/json"
	"io"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// JSONGenerator writes the whole report as one JSON document.
type JSONGenerator struct {
	Indent bool
}

func (g *JSONGenerator) Generate(report *Report, w io.Writer) error {
	enc := newEncoder(w)
	if g.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}

func (g *JSONGenerator) Extension() string { return "json" }

// JSONLGenerator writes one issue per line, highest severity first, so the
// output can be streamed through jq or grep. MinSeverity filters issues.
type JSONLGenerator struct {
	MinSeverity types.Severity
}

// issueLine is an issue tagged with the target it was found on
type issueLine struct {
	Target string `json:"target"`
	types.Issue
}

func (g *JSONLGenerator) Generate(report *Report, w io.Writer) error {
	enc := newEncoder(w)
	for _, issue := range report.FilterBySeverity(g.MinSeverity) {
		if err := enc.Encode(issueLine{Target: report.TargetURL, Issue: issue}); err != nil {
			return err
		}
	}
	return nil
}

func (g *JSONLGenerator) Extension() string { return "jsonl" }

// newEncoder keeps payloads such as <svg> readable in the output
func newEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}
