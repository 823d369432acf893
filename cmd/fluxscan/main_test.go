package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxfuzzer/fluxscan/internal/config"
	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "FluxScan version "+version)
}

func TestScanFlags_BaseRequest(t *testing.T) {
	cmd := newScanCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"-u", "https://example.com/login?next=%2Fhome#top",
		"-X", "post",
		"-d", "user=a&pass=b",
		"-H", "X-Test: 1",
		"--throttle", "0s",
	}))

	var f scanFlags
	f.url, _ = cmd.Flags().GetString("url")
	f.method, _ = cmd.Flags().GetString("method")
	f.data, _ = cmd.Flags().GetString("data")
	f.headers, _ = cmd.Flags().GetStringArray("header")
	f.throttle, _ = cmd.Flags().GetDuration("throttle")

	cfg := config.DefaultConfig()
	f.apply(cmd, cfg)
	assert.Zero(t, cfg.Scanner.Throttle)

	base, err := f.baseRequest(cfg)
	require.NoError(t, err)
	assert.Equal(t, "POST", base.Method)
	assert.Equal(t, "https://example.com/login", base.URL)
	assert.Equal(t, []types.Param{{Name: "next", Value: "/home"}}, base.Query)
	assert.Equal(t, "application/x-www-form-urlencoded", base.ContentType)
	v, ok := base.Headers.Get("x-test")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, "user=a&pass=b", string(base.Body))
}

func TestScanFlags_Errors(t *testing.T) {
	var f scanFlags
	_, err := f.baseRequest(config.DefaultConfig())
	assert.Error(t, err)

	cfg := config.DefaultConfig()
	cfg.Target.URL = "https://example.com/"
	f.headers = []string{"no-colon"}
	_, err = f.baseRequest(cfg)
	assert.Error(t, err)
}

func newTarget(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Server", "nginx/1.18.0")
		fmt.Fprintf(w, "<p>%s</p>", r.URL.Query().Get("q"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Scanner.Throttle = 0
	return cfg
}

func TestRunScan_WritesReport(t *testing.T) {
	srv := newTarget(t)
	cfg := testConfig()
	cfg.Output.OutputFile = filepath.Join(t.TempDir(), "report.json")

	base, err := types.NewBaseRequest("GET", srv.URL+"/search?q=hello", nil, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), &out, cfg, base))
	assert.Contains(t, out.String(), "Report written to")

	data, err := os.ReadFile(cfg.Output.OutputFile)
	require.NoError(t, err)

	var rep struct {
		Scans []struct {
			Status string `json:"status"`
		} `json:"scans"`
		Issues []struct {
			Title    string `json:"title"`
			Severity string `json:"severity"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))

	require.Len(t, rep.Scans, 1)
	assert.Equal(t, "Completed", rep.Scans[0].Status)

	var titles []string
	for _, issue := range rep.Issues {
		titles = append(titles, issue.Title)
	}
	joined := strings.Join(titles, "\n")
	assert.Contains(t, joined, "Insecure Header Configuration")
	assert.Contains(t, joined, "Server Version Disclosure")
	assert.Contains(t, joined, "Reflected Input Parameter: q")
	assert.Contains(t, joined, "Cross-Site Scripting (Reflected) in parameter: q")
}

func TestRunScan_PrintsSummary(t *testing.T) {
	srv := newTarget(t)
	cfg := testConfig()

	base, err := types.NewBaseRequest("GET", srv.URL+"/?q=hello", nil, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), &out, cfg, base))
	assert.Contains(t, out.String(), "Completed")
	assert.Contains(t, out.String(), "issue(s):")
}
