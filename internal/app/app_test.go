package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/cellar/internal/config"
	"github.com/temcen/cellar/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{Port: "0", Mode: "test"},
		Database: config.DatabaseConfig{URL: "sqlite://" + filepath.Join(t.TempDir(), "cellar.db"), SeedSampleData: true},
		Auth: config.AuthConfig{
			JWTSecret: "test-secret",
			TokenTTL:  time.Hour,
			APIKeys:   []string{"admin-key"},
		},
		Logging:        config.LoggingConfig{Level: "panic"},
		Recommendation: config.RecommendationConfig{Caching: config.CachingConfig{Enabled: true, RecommendationsTTL: time.Minute}},
		Monitoring:     config.MonitoringConfig{Enabled: true, MetricsPath: "/metrics"},
		Security: config.SecurityConfig{CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}},
	}
}

func startApp(t *testing.T) *App {
	t.Helper()
	application, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		application.Shutdown(ctx)
	})
	return application
}

func do(a *App, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestApp_RateAndRecommend(t *testing.T) {
	a := startApp(t)

	w := do(a, http.MethodGet, "/get_recommendations", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"red":[],"white":[],"sparkling":[],"other":[]}`, w.Body.String())

	w = do(a, http.MethodPost, "/rate_wine", `{"wine_id": 1, "rating": 5}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(a, http.MethodPost, "/rate_wine", `{"wine_id": 1, "rating": 9}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(a, http.MethodPost, "/rate_wine", `{"wine_id": 999, "rating": 3}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(a, http.MethodGet, "/get_recommendations", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var recs models.RecommendationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.NotEmpty(t, recs.Red)
	assert.Equal(t, int64(5), recs.Red[0].ID)
	assert.LessOrEqual(t, len(recs.White), 5)

	w = do(a, http.MethodGet, "/get_preferences", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var prefs models.PreferencesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prefs))
	assert.Equal(t, models.PreferenceProfile{Acidity: 3.5, Tannin: 4, Body: 5, Sweetness: 2}, prefs.Preferences)

	w = do(a, http.MethodDelete, "/delete_rating/1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(a, http.MethodDelete, "/delete_rating/1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApp_WineLookupAndSearch(t *testing.T) {
	a := startApp(t)

	w := do(a, http.MethodGet, "/wine/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"price":"120,000"`)

	w = do(a, http.MethodGet, "/search_wines_by_name?q=Pinot", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results []models.WineSearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, int64(6), results[0].ID)

	w = do(a, http.MethodGet, "/api/v1/wines/1/related", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestApp_AdminRoutes(t *testing.T) {
	a := startApp(t)

	w := do(a, http.MethodPost, "/api/v1/admin/catalog/sweetness", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(a, http.MethodPost, "/api/v1/auth/token", `{"api_key":"admin-key"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var token models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))

	bearer := map[string]string{"Authorization": "Bearer " + token.Token}
	w = do(a, http.MethodPost, "/api/v1/admin/catalog/sweetness", "", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Sweetness values updated successfully","updated":5}`, w.Body.String())

	apiKey := map[string]string{"Authorization": "Bearer admin-key"}
	w = do(a, http.MethodPost, "/api/v1/admin/catalog/batch",
		`{"records":[{"name":"Riesling Kabinett","varieties":["Riesling"],"type":"White","price":"30000","acidity":"5","tannin":"1","body":"2"}]}`,
		apiKey)
	require.Equal(t, http.StatusOK, w.Code, "without a bus the batch is imported synchronously")
	var batch models.CatalogBatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
	assert.Equal(t, "completed", batch.Status)

	w = do(a, http.MethodGet, "/search_wines_by_name?q=Riesling", "", nil)
	assert.Contains(t, w.Body.String(), "Riesling Kabinett")

	// job tracking needs Redis
	w = do(a, http.MethodGet, "/api/v1/admin/catalog/jobs/"+batch.JobID.String(), "", apiKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApp_HealthAndMetrics(t *testing.T) {
	a := startApp(t)

	w := do(a, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(a, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
