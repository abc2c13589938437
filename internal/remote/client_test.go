package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racksum/internal/models"
)

func TestSaveConfiguration(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		got  models.SaveConfigurationRequest
		path string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		path = r.Method + " " + r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.SaveConfigurationResponse{ID: 9, SiteID: 3, Name: got.Name})
	}))
	defer server.Close()

	c := New(server.URL+"/", time.Second)
	err := c.SaveConfiguration(context.Background(), 3, "row-a", json.RawMessage(`{"racks":[]}`), "first floor")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "POST /api/sites/3/racks", path)
	assert.Equal(t, "row-a", got.Name)
	assert.Equal(t, "first floor", got.Description)
	assert.JSONEq(t, `{"racks":[]}`, string(got.ConfigData))
}

func TestGetConfiguration_EscapesName(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sites/1/racks/row%20a", r.URL.EscapedPath())
		json.NewEncoder(w).Encode(models.SavedConfiguration{ID: 4, SiteID: 1, Name: "row a", ConfigData: json.RawMessage(`{}`)})
	}))
	defer server.Close()

	saved, err := New(server.URL, time.Second).GetConfiguration(context.Background(), 1, "row a")
	require.NoError(t, err)
	assert.Equal(t, "row a", saved.Name)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		notFound bool
		message  string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"error":"Site not found"}`, notFound: true, message: "Site not found"},
		{name: "conflict", status: http.StatusConflict, body: `{"error":"A site with this name already exists"}`, message: "A site with this name already exists"},
		{name: "plain text", status: http.StatusBadGateway, body: "upstream down\n", message: "upstream down"},
		{name: "empty body", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := New(server.URL, time.Second).GetSite(context.Background(), 1)
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.notFound, errors.Is(err, ErrNotFound))
		})
	}
}

func TestConnectionError(t *testing.T) {
	t.Parallel()

	_, err := New("http://127.0.0.1:1", time.Second).ListSites(context.Background())
	assert.Error(t, err)
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(server.URL, time.Second).Health(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSitesRoundTrip(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/sites", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.Site{ID: 2, Name: body["name"]})
			return
		}
		json.NewEncoder(w).Encode([]models.Site{{ID: 1, Name: "HQ"}})
	})
	mux.HandleFunc("/api/sites/2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, time.Second)
	ctx := context.Background()

	site, err := c.CreateSite(ctx, "Annex", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), site.ID)

	sites, err := c.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "HQ", sites[0].Name)

	assert.NoError(t, c.DeleteSite(ctx, 2))
}
