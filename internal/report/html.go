package report

import (
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// HTMLGenerator generates HTML reports
type HTMLGenerator struct {
	template *template.Template
}

var htmlFuncs = template.FuncMap{
	"severityClass": func(s types.Severity) string {
		return strings.ToLower(s.String())
	},
	"formatTime": func(t time.Time) string {
		return t.Format("2006-01-02 15:04:05")
	},
	"formatDuration": func(d time.Duration) string {
		return d.Round(time.Millisecond).String()
	},
}

// NewHTMLGenerator creates a new HTML generator
func NewHTMLGenerator() *HTMLGenerator {
	return &HTMLGenerator{
		template: template.Must(template.New("report").Funcs(htmlFuncs).Parse(htmlTemplate)),
	}
}

// Generate generates an HTML report
func (g *HTMLGenerator) Generate(report *Report, w io.Writer) error {
	return g.template.Execute(w, report)
}

// Extension returns the file extension
func (g *HTMLGenerator) Extension() string {
	return "html"
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Title}} - FluxScan Report</title>
<style>
body { font-family: sans-serif; background: #0D0D0D; color: #E0E0E0; margin: 0; }
main { max-width: 1100px; margin: 0 auto; padding: 24px; }
h1 { color: #00FFFF; }
h2 { color: #FF00FF; border-bottom: 1px solid #333; }
table { width: 100%; border-collapse: collapse; }
td, th { text-align: left; padding: 6px 8px; border-bottom: 1px solid #222; }
.issue { background: #16213E; border-left: 4px solid #00FFFF; margin: 12px 0; padding: 12px; }
.issue.critical { border-left-color: #FF0055; }
.issue.high { border-left-color: #FF8800; }
.issue.medium { border-left-color: #FFFF00; }
.issue.low { border-left-color: #00FF00; }
pre { white-space: pre-wrap; background: #0D0D0D; padding: 8px; }
.dim { color: #888; }
</style>
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<p class="dim">Target: <strong>{{.TargetURL}}</strong> · Generated: {{formatTime .GeneratedAt}} · Duration: {{formatDuration .Statistics.Duration}}</p>

<h2>Summary</h2>
<table>
<tr><th>Scans completed</th><td>{{.Statistics.ScansCompleted}}</td></tr>
<tr><th>Scans failed</th><td>{{.Statistics.ScansFailed}}</td></tr>
<tr><th>Requests sent</th><td>{{.Statistics.TotalRequests}}</td></tr>
<tr><th>Failed requests</th><td>{{.Statistics.FailedRequests}}</td></tr>
<tr><th>Issues</th><td>{{.Statistics.IssuesFound}}</td></tr>
{{range $sev, $count := .Severity}}<tr><th>{{$sev}}</th><td>{{$count}}</td></tr>
{{end}}</table>

{{if .Scans}}<h2>Scans</h2>
<table>
<tr><th>Scan</th><th>Request</th><th>Status</th></tr>
{{range .Scans}}<tr><td>{{.ScanID}}</td><td>{{.BaseRequestURL}}</td><td>{{.Status}}</td></tr>
{{end}}</table>
{{end}}

<h2>Issues ({{len .Issues}})</h2>
{{range .Issues}}<div class="issue {{severityClass .Severity}}">
<strong>{{.Title}}</strong>
<span class="dim">{{.Severity}} / {{.Confidence}} · request {{.AffectedRequestID}}</span>
<pre>{{.Description}}</pre>
</div>
{{else}}<p>No issues found.</p>
{{end}}
</main>
</body>
</html>`
