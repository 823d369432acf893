package passive

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// requiredHeaders must be present on every response.
var requiredHeaders = []string{
	"strict-transport-security",
	"content-security-policy",
	"x-frame-options",
	"referrer-policy",
	"permissions-policy",
}

// versionHeaders commonly leak server or framework versions.
var versionHeaders = []string{"server", "x-powered-by", "x-aspnet-version"}

var versionPattern = regexp.MustCompile(`[\d.]+`)

// Reflected values outside (minReflectLen, maxReflectLen) are ignored.
const (
	minReflectLen = 2
	maxReflectLen = 100
)

// CheckMissingSecurityHeaders lists missing security headers and an insecure
// X-Content-Type-Options value.
func CheckMissingSecurityHeaders(resp *types.Response) []string {
	var findings []string
	for _, name := range requiredHeaders {
		if _, ok := resp.Header(name); !ok {
			findings = append(findings, "Missing security header: "+name)
		}
	}

	// An empty value counts as missing.
	xcto, _ := resp.Header("x-content-type-options")
	switch {
	case xcto == "":
		findings = append(findings, "Missing security header: x-content-type-options")
	case !strings.EqualFold(xcto, "nosniff"):
		findings = append(findings, fmt.Sprintf("Insecure value for x-content-type-options: %q. Expected \"nosniff\".", xcto))
	}
	return findings
}

// CheckReflectedParameters returns the names of query parameters whose value
// appears verbatim in the response body. Body parameters are not inspected.
func CheckReflectedParameters(req *types.Request, resp *types.Response) []string {
	if req == nil || len(resp.Body) == 0 {
		return nil
	}
	body := resp.BodyString()

	var names []string
	seen := make(map[string]struct{})
	for _, p := range req.Query {
		if len(p.Value) <= minReflectLen || len(p.Value) >= maxReflectLen {
			continue
		}
		if _, dup := seen[p.Name]; dup {
			continue
		}
		if strings.Contains(body, p.Value) {
			seen[p.Name] = struct{}{}
			names = append(names, p.Name)
		}
	}
	return names
}

// CheckServerVersionDisclosure reports version-bearing values of the server,
// x-powered-by and x-aspnet-version headers. Values not longer than the
// header name plus two are treated as generic product names.
func CheckServerVersionDisclosure(resp *types.Response) []string {
	var findings []string
	for _, name := range versionHeaders {
		value, ok := resp.Header(name)
		if !ok || value == "" || !versionPattern.MatchString(value) {
			continue
		}
		if len(value) > len(name)+2 {
			findings = append(findings, fmt.Sprintf("Potential version disclosure via header: %s: %s", name, value))
		}
	}
	return findings
}
