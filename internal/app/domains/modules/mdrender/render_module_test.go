package mdrender

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vcp/sttrelay/pkg/logger"
)

func TestRender_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/reports/VC-001", r.URL.Path)
		w.Write([]byte(`{"document":"ZG9jdW1lbnQ="}`))
	}))
	defer srv.Close()

	m := NewRenderModule(srv.URL, 5*time.Second, logger.NewNopLogger())
	result := m.Render(context.Background(), "VC-001")

	assert.True(t, result.OK)
	assert.Equal(t, "ZG9jdW1lbnQ=", result.Document)
}

func TestRender_FailuresFoldToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "empty document",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"document":""}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			m := NewRenderModule(srv.URL, 5*time.Second, logger.NewNopLogger())
			result := m.Render(context.Background(), "VC-001")

			assert.False(t, result.OK)
			assert.Empty(t, result.Document)
			assert.NotEmpty(t, result.Reason)
		})
	}
}

func TestRender_NotConfigured(t *testing.T) {
	m := NewRenderModule("", 5*time.Second, logger.NewNopLogger())
	result := m.Render(context.Background(), "VC-001")

	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, "not configured")
}
