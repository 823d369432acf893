package passive

import (
	"strings"
	"testing"

	"github.com/fluxfuzzer/fluxscan/internal/issues"
	"github.com/fluxfuzzer/fluxscan/internal/metrics"
	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(headers types.Headers, body string, req *types.Request) *types.Response {
	return &types.Response{
		RequestID:  "req-test-123",
		StatusCode: 200,
		Headers:    headers,
		Body:       []byte(body),
		Request:    req,
	}
}

func secureHeaders() types.Headers {
	return types.Headers{
		{Name: "Strict-Transport-Security", Value: "max-age=31536000"},
		{Name: "Content-Security-Policy", Value: "default-src 'self'"},
		{Name: "X-Content-Type-Options", Value: "nosniff"},
		{Name: "X-Frame-Options", Value: "DENY"},
		{Name: "Referrer-Policy", Value: "strict-origin-when-cross-origin"},
		{Name: "Permissions-Policy", Value: "geolocation=(), microphone=()"},
	}
}

func TestCheckMissingSecurityHeaders(t *testing.T) {
	t.Run("all present", func(t *testing.T) {
		assert.Empty(t, CheckMissingSecurityHeaders(response(secureHeaders(), "", nil)))
	})

	t.Run("multiple missing", func(t *testing.T) {
		got := CheckMissingSecurityHeaders(response(types.Headers{{Name: "x-frame-options", Value: "SAMEORIGIN"}}, "", nil))
		assert.ElementsMatch(t, []string{
			"Missing security header: strict-transport-security",
			"Missing security header: content-security-policy",
			"Missing security header: referrer-policy",
			"Missing security header: permissions-policy",
			"Missing security header: x-content-type-options",
		}, got)
	})

	t.Run("insecure nosniff value", func(t *testing.T) {
		got := CheckMissingSecurityHeaders(response(types.Headers{{Name: "X-Content-Type-Options", Value: "sniff"}}, "", nil))
		assert.Contains(t, got, `Insecure value for x-content-type-options: "sniff". Expected "nosniff".`)
		assert.Len(t, got, 6)
	})

	t.Run("nosniff is case-insensitive", func(t *testing.T) {
		h := secureHeaders()
		h[2].Value = "NoSniff"
		assert.Empty(t, CheckMissingSecurityHeaders(response(h, "", nil)))
	})
}

func TestCheckReflectedParameters(t *testing.T) {
	tests := []struct {
		name  string
		query []types.Param
		body  string
		want  []string
	}{
		{
			name:  "single reflection",
			query: []types.Param{{Name: "search", Value: "test-value"}},
			body:  "<html><body>Search results for test-value here.</body></html>",
			want:  []string{"search"},
		},
		{
			name:  "multiple reflections",
			query: []types.Param{{Name: "user", Value: "admin"}, {Name: "id", Value: "12345"}},
			body:  "User: admin, ID: 12345",
			want:  []string{"user", "id"},
		},
		{
			name:  "not reflected",
			query: []types.Param{{Name: "search", Value: "test-value"}},
			body:  "<html><body>No results found.</body></html>",
		},
		{
			name: "length bounds",
			query: []types.Param{
				{Name: "short", Value: "a"},
				{Name: "long", Value: strings.Repeat("a", 150)},
				{Name: "ok", Value: "goodvalue"},
			},
			body: "Reflected: a " + strings.Repeat("a", 150) + " goodvalue",
			want: []string{"ok"},
		},
		{
			name:  "three characters is long enough",
			query: []types.Param{{Name: "q", Value: "abc"}},
			body:  "abc",
			want:  []string{"q"},
		},
		{
			name:  "duplicate names reported once",
			query: []types.Param{{Name: "tag", Value: "red-one"}, {Name: "tag", Value: "blue-two"}},
			body:  "red-one blue-two",
			want:  []string{"tag"},
		},
		{
			name:  "empty body",
			query: []types.Param{{Name: "q", Value: "value"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &types.Request{Method: "GET", URL: "http://app.local/", Query: tt.query}
			got := CheckReflectedParameters(req, response(nil, tt.body, req))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckServerVersionDisclosure(t *testing.T) {
	tests := []struct {
		name    string
		headers types.Headers
		want    []string
	}{
		{"server with version", types.Headers{{Name: "Server", Value: "Apache/2.4.52 (Ubuntu)"}},
			[]string{"Potential version disclosure via header: server: Apache/2.4.52 (Ubuntu)"}},
		{"generic server", types.Headers{{Name: "Server", Value: "Apache"}}, nil},
		{"no version", types.Headers{{Name: "X-Powered-By", Value: "Express"}}, nil},
		{"mixed case name", types.Headers{{Name: "sErVeR", Value: "nginx/1.21.6"}},
			[]string{"Potential version disclosure via header: server: nginx/1.21.6"}},
		{"powered by", types.Headers{{Name: "X-Powered-By", Value: "PHP/8.1.2-1ubuntu2.14"}},
			[]string{"Potential version disclosure via header: x-powered-by: PHP/8.1.2-1ubuntu2.14"}},
		{"short value", types.Headers{{Name: "X-Powered-By", Value: "PHP/8.1.2"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckServerVersionDisclosure(response(tt.headers, "", nil)))
		})
	}
}

func TestAnalyzer_OnResponseObserved(t *testing.T) {
	m, err := metrics.New()
	require.NoError(t, err)
	rec := issues.NewRecorder()
	a := New(rec, Options{PluginID: "passive-test", Metrics: m})

	req := &types.Request{ID: "req-1", Method: "GET", URL: "http://app.local/", Query: []types.Param{{Name: "search", Value: "needle"}}}
	headers := append(secureHeaders(), types.Param{Name: "Server", Value: "nginx/1.21.6"})
	headers[0] = types.Param{Name: "X-Debug", Value: "1"} // drop HSTS

	resp := response(headers, "found needle", req)
	resp.RequestID = ""

	n := a.OnResponseObserved(resp)
	require.Equal(t, 3, n)

	got := rec.Issues()
	require.Len(t, got, 3)

	assert.Equal(t, TitleInsecureHeaders, got[0].Title)
	assert.Equal(t, "Missing security header: strict-transport-security", got[0].Description)
	assert.Equal(t, types.Low, got[0].Severity)
	assert.Equal(t, types.Certain, got[0].Confidence)

	assert.Equal(t, "Reflected Input Parameter: search", got[1].Title)
	assert.Equal(t, types.Info, got[1].Severity)
	assert.Equal(t, types.Tentative, got[1].Confidence)
	assert.Contains(t, got[1].Description, `"search"`)

	assert.Equal(t, TitleVersionDisclosure, got[2].Title)
	assert.Equal(t, types.Firm, got[2].Confidence)
	assert.True(t, strings.HasSuffix(got[2].Description, "identify known vulnerabilities."))

	for _, issue := range got {
		assert.Equal(t, "passive-test", issue.PluginID)
		assert.Equal(t, "req-1", issue.AffectedRequestID)
	}

	count, err := testutil.GatherAndCount(m.Registry(), "fluxscan_passive_findings_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
