package rawreq

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FormPost(t *testing.T) {
	raw := "POST /login?next=%2Fhome HTTP/1.1\n" +
		"Host: app.local:8443\n" +
		"Content-Type: application/x-www-form-urlencoded\n" +
		"Content-Length: 999\n" +
		"X-Trace: abc\n" +
		"\n" +
		"user=alice&pass=secret"

	base, err := Parse([]byte(raw), "")
	require.NoError(t, err)

	assert.Equal(t, "POST", base.Method)
	assert.Equal(t, "https://app.local:8443/login", base.URL)
	assert.Equal(t, []types.Param{{Name: "next", Value: "/home"}}, base.Query)
	assert.Equal(t, "user=alice&pass=secret", string(base.Body))
	assert.Equal(t, "application/x-www-form-urlencoded", base.ContentType)

	trace, ok := base.Headers.Get("X-Trace")
	require.True(t, ok)
	assert.Equal(t, "abc", trace)
	_, ok = base.Headers.Get("Content-Length")
	assert.False(t, ok)
}

func TestParse_GetCRLF(t *testing.T) {
	raw := "GET /search?q=shoes&page=2 HTTP/1.1\r\nHost: shop.local\r\nAccept: */*\r\n\r\n"

	base, err := Parse([]byte(raw), "http")
	require.NoError(t, err)
	assert.Equal(t, "GET", base.Method)
	assert.Equal(t, "http://shop.local/search?q=shoes&page=2", base.FullURL())
	assert.Empty(t, base.Body)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("\n\n"), "")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse([]byte("GET / HTTP/1.1\n\n"), "")
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.txt")
	require.NoError(t, os.WriteFile(path, []byte("GET /a?x=1 HTTP/1.1\nHost: h.local\n\n"), 0o644))

	base, err := ReadFile(path, "http")
	require.NoError(t, err)
	assert.Equal(t, "http://h.local/a?x=1", base.FullURL())

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.txt"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
