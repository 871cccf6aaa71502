package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNewerVersion(t *testing.T) {
	tests := []struct {
		name     string
		latest   string
		current  string
		expected bool
	}{
		{"same version", "0.1.0", "0.1.0", false},
		{"patch upgrade", "0.1.1", "0.1.0", true},
		{"patch downgrade", "0.1.0", "0.1.1", false},
		{"minor upgrade", "0.2.0", "0.1.9", true},
		{"major upgrade", "1.0.0", "0.9.9", true},
		{"multi-digit", "0.1.10", "0.1.9", true},
		{"shorter latest", "1.0", "0.9.1", true},
		{"shorter current", "0.9.1", "1.0", false},
		{"pre-release same base", "0.2.0-beta", "0.2.0", false},
		{"build metadata", "0.2.1+build7", "0.2.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isNewerVersion(tt.latest, tt.current))
		})
	}
}

func TestCheck(t *testing.T) {
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"tag_name": "v0.2.0", "html_url": "https://example.com/r/0.2.0"}`))
	}))
	defer srv.Close()

	c := &Checker{URL: srv.URL, Client: srv.Client()}

	update, err := c.Check(context.Background(), "0.1.0")
	require.NoError(t, err)
	assert.True(t, update.Available)
	assert.Equal(t, "0.2.0", update.Latest)
	assert.Equal(t, "https://example.com/r/0.2.0", update.URL)

	update, err = c.Check(context.Background(), "v0.2.0")
	require.NoError(t, err)
	assert.False(t, update.Available)

	assert.Equal(t, []string{"keyclash/0.1.0", "keyclash/0.2.0"}, agents)
}

func TestCheckBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := (&Checker{URL: srv.URL, Client: srv.Client()}).Check(context.Background(), "0.1.0")
	assert.ErrorContains(t, err, "403")
}
