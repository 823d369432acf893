// Package analyzer classifies the response to a single mutated request.
// Each payload category has exactly one detection rule; at most one finding
// is produced per response.
package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// Finding types reported by the active rules.
const (
	TypeReflectedXSS = "Cross-Site Scripting (Reflected)"
	TypeSQLError     = "SQL Injection Error"
	TypeSSTI         = "Server-Side Template Injection (Potential)"
)

// evidenceExcerpt bounds how much of a payload is quoted in evidence text.
const evidenceExcerpt = 100

// Rule inspects a response produced by payload and returns a finding or nil.
type Rule func(payload string, resp *types.Response) *types.Finding

var rules = map[types.Category]Rule{
	types.XSS:  detectReflectedXSS,
	types.SQLi: detectSQLError,
	types.SSTI: detectTemplateEvaluation,
}

// Analyze applies the rule registered for the payload's category.
// resp.Request, when set, identifies the mutated request but does not
// influence the verdict.
func Analyze(payload types.Payload, resp *types.Response) *types.Finding {
	if resp == nil {
		return nil
	}
	rule, ok := rules[payload.Category]
	if !ok {
		return nil
	}
	return rule(payload.Value, resp)
}

func detectReflectedXSS(payload string, resp *types.Response) *types.Finding {
	if payload == "" || !strings.Contains(resp.BodyString(), payload) {
		return nil
	}

	contentType := resp.ContentType()
	excerpt := truncate(payload, evidenceExcerpt)

	f := &types.Finding{
		Type:       TypeReflectedXSS,
		Severity:   types.Low,
		Confidence: types.Tentative,
	}

	switch {
	case strings.Contains(contentType, "text/html"),
		strings.Contains(contentType, "application/xhtml+xml"),
		strings.Contains(contentType, "application/xml"):
		f.Severity = types.High
		f.Confidence = types.Firm
		f.Evidence = fmt.Sprintf("Payload reflected in HTML/XML response body (Content-Type: %s): %s", contentType, excerpt)
	case strings.Contains(contentType, "application/json"):
		f.Evidence = fmt.Sprintf("Payload reflected in JSON response body (Content-Type: %s). Exploitable only if the JSON is embedded in an HTML page unsafely: %s", contentType, excerpt)
	default:
		if contentType == "" {
			contentType = "Not set"
		}
		f.Evidence = fmt.Sprintf("Payload reflected in response body (Content-Type: %s): %s", contentType, excerpt)
	}

	return f
}

// sqlErrorPatterns are database error signatures, checked in order.
var sqlErrorPatterns = []*regexp.Regexp{
	// MySQL
	regexp.MustCompile(`(?i)SQL syntax.*?MySQL`),
	regexp.MustCompile(`(?i)You have an error in your SQL syntax`),
	// PostgreSQL
	regexp.MustCompile(`(?i)syntax error.*?PostgreSQL`),
	// Oracle
	regexp.MustCompile(`(?i)ORA-[0-9]{5}`),
	// MSSQL
	regexp.MustCompile(`(?i)Unclosed quotation mark after the character string`),
	regexp.MustCompile(`(?i)Statement\(s\) could not be prepared`),
	regexp.MustCompile(`(?i)Incorrect syntax near`),
	// SQLite
	regexp.MustCompile(`(?i)sqlite3\.OperationalError`),
	regexp.MustCompile(`(?i)near ".*?": syntax error`),
}

func detectSQLError(_ string, resp *types.Response) *types.Finding {
	body := resp.BodyString()
	for _, pattern := range sqlErrorPatterns {
		if pattern.MatchString(body) {
			return &types.Finding{
				Type:       TypeSQLError,
				Evidence:   fmt.Sprintf("Potential SQL error detected matching pattern: %s", pattern.String()),
				Severity:   types.High,
				Confidence: types.Firm,
			}
		}
	}
	return nil
}

// mathTemplates holds the 7*7 probe for each supported template syntax,
// compared with all whitespace removed.
var mathTemplates = map[string]string{
	"{{7*7}}":  "Jinja2/Twig",
	"${7*7}":   "Freemarker/Velocity",
	"<%=7*7%>": "ERB",
	"#{7*7}":   "Mako/Ruby",
	"@(7*7)":   "Razor",
	"<#=7*7#>": "T4",
}

// IsMathTemplate reports whether payload is one of the recognised 7*7 probes.
func IsMathTemplate(payload string) bool {
	_, ok := mathTemplates[strings.Join(strings.Fields(payload), "")]
	return ok
}

// detectTemplateEvaluation looks for "49" anywhere in the body. It does not
// diff against an unmodified baseline, so any page that already contains
// "49" will match when a math probe was sent.
func detectTemplateEvaluation(payload string, resp *types.Response) *types.Finding {
	if !strings.Contains(resp.BodyString(), "49") || !IsMathTemplate(payload) {
		return nil
	}
	return &types.Finding{
		Type:       TypeSSTI,
		Evidence:   fmt.Sprintf("Numerical expression '%s' potentially evaluated to '49' in response. Original payload: %s", payload, truncate(payload, evidenceExcerpt)),
		Severity:   types.High,
		Confidence: types.Tentative,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
