package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToken(t *testing.T) {
	tr := NewTransport(24*time.Hour, false)

	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{name: "nothing", want: ""},
		{name: "cookie only", cookie: "from-cookie", want: "from-cookie"},
		{name: "bearer only", header: "Bearer from-header", want: "from-header"},
		{name: "cookie wins over header", cookie: "from-cookie", header: "Bearer from-header", want: "from-cookie"},
		{name: "empty cookie falls back", cookie: "", header: "Bearer from-header", want: "from-header"},
		{name: "non-bearer scheme", header: "Basic dXNlcjpwYXNz", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, tr.ExtractToken(r))
		})
	}
}

func TestAttach(t *testing.T) {
	w := httptest.NewRecorder()
	NewTransport(24*time.Hour, false).Attach(w, "abc")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 86400, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.False(t, c.Secure)
}

func TestAttach_SecureInProduction(t *testing.T) {
	w := httptest.NewRecorder()
	NewTransport(24*time.Hour, true).Attach(w, "abc")

	raw := w.Header().Get("Set-Cookie")
	assert.Contains(t, raw, "Secure")
	assert.Contains(t, raw, "HttpOnly")
	assert.Contains(t, raw, "Max-Age=86400")
}

func TestClear(t *testing.T) {
	w := httptest.NewRecorder()
	NewTransport(24*time.Hour, false).Clear(w)

	raw := w.Header().Get("Set-Cookie")
	assert.Contains(t, raw, "token=;")
	assert.Contains(t, raw, "Max-Age=0")
	assert.Contains(t, raw, "Path=/")
}
