package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compgrid/internal/model"
)

func TestHTTPQuerier_QuerySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SELECT 1", body["query"])
		w.Write([]byte(`[
			{"date": "2024-03-13", "total": 5},
			{"date": "2024-03-14", "total": 1, "over": 4},
			{"date": "2024-03-15", "total": null}
		]`))
	}))
	defer srv.Close()

	s, err := NewHTTPQuerier(srv.URL, "key", "").QuerySeries(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	m, ok := s.Get(model.NewDate(2024, 3, 14))
	require.True(t, ok)
	assert.Equal(t, model.Some(0.25), m.Value())
}

func TestHTTPQuerier_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad sql", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewHTTPQuerier(srv.URL, "", "").QuerySeries(context.Background(), "SELEC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"date": "14/03/2024", "total": 1}]`))
	}))
	defer bad.Close()
	_, err = NewHTTPQuerier(bad.URL, "", "").QuerySeries(context.Background(), "q")
	assert.Error(t, err)
}
