package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientFetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"meta": {}, "data": [{"id": 1}, {"id": 2}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/live/json/events/response_fields/all/", time.Second, zap.NewNop())
	recs, err := c.Fetch(context.Background(), 25)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, "/live/json/events/response_fields/all/paginate/25", gotPath)

	_, err = c.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "/live/json/events/response_fields/all/paginate/false", gotPath)
}

func TestClientFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "down", http.StatusBadGateway) }},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"data": [`)) }},
		{"no data", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"items": []}`)) }},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"data": []}`))
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := NewClient(srv.URL, 50*time.Millisecond, nil)
			_, err := c.Fetch(context.Background(), 10)
			assert.Error(t, err)
		})
	}
}
