package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maltedev/amazon-cart-agent/internal/models"
	"github.com/maltedev/amazon-cart-agent/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *progress.Tracker) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tracker := progress.NewTracker("run-42", nil, logger)
	tracker.SetRequest("laptop", models.Criteria{MinRating: models.Float(4)}, 2)
	tracker.SetCandidates(context.Background(),
		[]models.Candidate{{ASIN: "A", Title: "Kept"}, {ASIN: "B", Title: "Dropped"}},
		[]models.Candidate{{ASIN: "A", Title: "Kept"}},
	)
	tracker.RecordAdded(models.NewAddedItem("Kept", "A", models.AddPathInline))

	srv := httptest.NewServer(NewHandlers(tracker, logger).Router())
	t.Cleanup(srv.Close)
	return srv, tracker
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]interface{}
	resp := getJSON(t, srv.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "run-42", body["run_id"])
}

func TestGetRun(t *testing.T) {
	srv, tracker := newTestServer(t)
	tracker.SetStage(context.Background(), progress.StageAdding)

	var snap progress.Snapshot
	getJSON(t, srv.URL+"/api/v1/run", &snap)

	assert.Equal(t, "run-42", snap.RunID)
	assert.Equal(t, progress.StageAdding, snap.Stage)
	require.NotNil(t, snap.Criteria.MinRating)
	assert.Equal(t, 4.0, *snap.Criteria.MinRating)
}

func TestGetCandidates(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"Filtered by default", "", []string{"A"}},
		{"All scraped", "?all=true", []string{"A", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Query      string             `json:"query"`
				Scraped    int                `json:"scraped"`
				Candidates []models.Candidate `json:"candidates"`
			}
			getJSON(t, srv.URL+"/api/v1/run/candidates"+tt.query, &body)

			assert.Equal(t, "laptop", body.Query)
			assert.Equal(t, 2, body.Scraped)
			var asins []string
			for _, c := range body.Candidates {
				asins = append(asins, c.ASIN)
			}
			assert.Equal(t, tt.want, asins)
		})
	}
}

func TestGetAdded(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		Count int                `json:"count"`
		Max   int                `json:"max"`
		Added []models.AddedItem `json:"added"`
	}
	getJSON(t, srv.URL+"/api/v1/run/added", &body)

	assert.Equal(t, 1, body.Count)
	assert.Equal(t, 2, body.Max)
	require.Len(t, body.Added, 1)
	assert.Equal(t, models.AddPathInline, body.Added[0].Path)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/run", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
