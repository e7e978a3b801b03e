package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"great shop", "meh"}, req.Reviews)

		_ = json.NewEncoder(w).Encode(predictResponse{Ratings: []float64{4.8, 2.5}})
	}))
	defer server.Close()

	client := newPredictorClient(server.URL)
	ratings, err := client.Predict(context.Background(), []string{"great shop", "meh"})
	require.NoError(t, err)
	assert.Equal(t, []float64{4.8, 2.5}, ratings)
}

func TestPredictErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
		{
			name: "rating count mismatch",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(predictResponse{Ratings: []float64{4}})
			},
		},
		{
			name: "rating out of range",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(predictResponse{Ratings: []float64{4, 9}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newPredictorClient(server.URL)
			_, err := client.Predict(context.Background(), []string{"a", "b"})
			assert.Error(t, err)
		})
	}
}

func TestPredictTrimsTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		_ = json.NewEncoder(w).Encode(predictResponse{Ratings: []float64{4}})
	}))
	defer server.Close()

	client := newPredictorClient(server.URL + "/")
	_, err := client.Predict(context.Background(), []string{"a"})
	require.NoError(t, err)
}
