package types

import (
	"fmt"
	"strings"
)

// Category identifies a payload family. The set is closed.
type Category int

const (
	XSS Category = iota
	SQLi
	SSTI
)

// Categories lists every category in canonical order.
var Categories = []Category{XSS, SQLi, SSTI}

func (c Category) String() string {
	switch c {
	case XSS:
		return "xss"
	case SQLi:
		return "sqli"
	case SSTI:
		return "ssti"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory maps a category name (case-insensitive) to its value.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xss":
		return XSS, nil
	case "sqli":
		return SQLi, nil
	case "ssti":
		return SSTI, nil
	}
	return 0, fmt.Errorf("unknown payload category %q", s)
}

// Payload is a single injection string tagged with its category.
type Payload struct {
	Category Category
	Value    string
}

// Severity indicates the severity level of a finding
type Severity int

const (
	Info Severity = iota
	Low
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "Info"
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	case Critical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Severity) UnmarshalText(text []byte) error {
	for _, v := range []Severity{Info, Low, Medium, High, Critical} {
		if strings.EqualFold(v.String(), string(text)) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Confidence indicates how certain a finding is
type Confidence int

const (
	Tentative Confidence = iota
	Firm
	Certain
)

func (c Confidence) String() string {
	switch c {
	case Tentative:
		return "Tentative"
	case Firm:
		return "Firm"
	case Certain:
		return "Certain"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Confidence) UnmarshalText(text []byte) error {
	for _, v := range []Confidence{Tentative, Firm, Certain} {
		if strings.EqualFold(v.String(), string(text)) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown confidence %q", text)
}

// Finding is a structured detection result. It is handed to an issue
// sink immediately and never retained.
type Finding struct {
	Type       string     `json:"type"`
	Evidence   string     `json:"evidence"`
	Severity   Severity   `json:"severity"`
	Confidence Confidence `json:"confidence"`
	Parameter  string     `json:"parameter,omitempty"`
}

// Issue is the record delivered to an issue sink.
type Issue struct {
	PluginID          string     `json:"pluginId"`
	Title             string     `json:"title"`
	Severity          Severity   `json:"severity"`
	Confidence        Confidence `json:"confidence"`
	Description       string     `json:"description"`
	AffectedRequestID string     `json:"affectedRequestId"`
}
