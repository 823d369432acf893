package scanner

import (
	"fmt"

	"github.com/fluxfuzzer/fluxscan/internal/mutator"
	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// NewIssue renders an active finding as an issue record.
func NewIssue(pluginID string, base *types.BaseRequest, m *mutator.Mutation, f *types.Finding, requestID string) types.Issue {
	var title, label string
	switch m.Kind {
	case mutator.KindQueryReplace:
		title = fmt.Sprintf("%s in parameter: %s", f.Type, m.Parameter)
		label = "Affected Parameter"
	case mutator.KindQueryAppend:
		title = fmt.Sprintf("%s via new parameter: %s", f.Type, m.Parameter)
		label = "Injected Parameter"
	case mutator.KindFormReplace:
		title = fmt.Sprintf("%s in FORM parameter: %s", f.Type, m.Parameter)
		label = "Affected FORM Parameter"
	case mutator.KindFormAppend:
		title = fmt.Sprintf("%s via new FORM parameter: %s", f.Type, m.Parameter)
		label = "Injected FORM Parameter"
	default:
		title = fmt.Sprintf("%s in JSON key: %s", f.Type, m.Parameter)
		label = "Affected JSON Key"
	}

	description := fmt.Sprintf("Vulnerability: %s\n%s: %s\nPayload: %s\nEvidence: %s\n\nOriginal Request: %s %s",
		f.Type, label, m.Parameter, m.Payload, f.Evidence, base.Method, base.FullURL())

	return types.Issue{
		PluginID:          pluginID,
		Title:             title,
		Severity:          f.Severity,
		Confidence:        f.Confidence,
		Description:       description,
		AffectedRequestID: requestID,
	}
}
