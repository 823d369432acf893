// Package passive inspects observed exchanges without sending any traffic.
package passive

import (
	"fmt"
	"log/slog"

	"github.com/fluxfuzzer/fluxscan/internal/issues"
	"github.com/fluxfuzzer/fluxscan/internal/metrics"
	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// Issue titles emitted by the passive checks.
const (
	TitleInsecureHeaders   = "Insecure Header Configuration"
	TitleReflectedParam    = "Reflected Input Parameter: %s"
	TitleVersionDisclosure = "Server Version Disclosure"
)

// Check names used for metrics.
const (
	CheckHeaders    = "headers"
	CheckReflection = "reflection"
	CheckVersion    = "version"
)

const versionAdvice = "\n\nLeaking specific software versions can help attackers identify known vulnerabilities."

// Options configures an Analyzer
type Options struct {
	PluginID string
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Analyzer runs the passive checks against every observed response
type Analyzer struct {
	sink     issues.Sink
	pluginID string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a passive analyzer that reports to sink
func New(sink issues.Sink, opts Options) *Analyzer {
	if sink == nil {
		sink = issues.Discard
	}
	if opts.PluginID == "" {
		opts.PluginID = issues.DefaultPluginID
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Analyzer{
		sink:     sink,
		pluginID: opts.PluginID,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// OnResponseObserved runs all checks on resp and emits one issue per result.
// It returns the number of issues created. The reflection check is skipped
// when resp.Request is nil.
func (a *Analyzer) OnResponseObserved(resp *types.Response) int {
	if resp == nil {
		return 0
	}
	requestID := resp.RequestID
	if requestID == "" && resp.Request != nil {
		requestID = resp.Request.ID
	}

	headerFindings := CheckMissingSecurityHeaders(resp)
	for _, f := range headerFindings {
		a.emit(TitleInsecureHeaders, types.Low, types.Certain, f, requestID)
	}

	reflected := CheckReflectedParameters(resp.Request, resp)
	for _, name := range reflected {
		a.emit(fmt.Sprintf(TitleReflectedParam, name), types.Info, types.Tentative, reflectionDescription(name), requestID)
	}

	versionFindings := CheckServerVersionDisclosure(resp)
	for _, f := range versionFindings {
		a.emit(TitleVersionDisclosure, types.Info, types.Firm, f+versionAdvice, requestID)
	}

	a.metrics.Passive(CheckHeaders, len(headerFindings))
	a.metrics.Passive(CheckReflection, len(reflected))
	a.metrics.Passive(CheckVersion, len(versionFindings))

	total := len(headerFindings) + len(reflected) + len(versionFindings)
	a.logger.Debug("passive checks finished",
		slog.String("request_id", requestID),
		slog.Int("issues", total),
	)
	return total
}

func (a *Analyzer) emit(title string, sev types.Severity, conf types.Confidence, description, requestID string) {
	a.sink.Create(types.Issue{
		PluginID:          a.pluginID,
		Title:             title,
		Severity:          sev,
		Confidence:        conf,
		Description:       description,
		AffectedRequestID: requestID,
	})
}

func reflectionDescription(name string) string {
	return fmt.Sprintf("The value of parameter %q was found reflected in the response body. "+
		"This might indicate potential cross-site scripting (XSS) vulnerabilities if user input is not properly sanitized. "+
		"Manual verification is recommended.", name)
}
