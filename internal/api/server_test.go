package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wemix/blockwait/internal/config"
	"github.com/wemix/blockwait/internal/track"
	"github.com/wemix/blockwait/internal/version"
	"github.com/wemix/blockwait/pkg/logger"
)

// stubSource is a fixed-height source for wiring a tracker into tests.
type stubSource struct {
	height int64
}

func (s *stubSource) CurrentHeight(ctx context.Context) (int64, error) {
	return s.height, nil
}

func (s *stubSource) Name() string {
	return "stub"
}

// setupTestServer creates a server with minimal dependencies. When
// withTracker is set, the tracker is started and has observed a height
// before the server is returned.
func setupTestServer(t *testing.T, withTracker bool) *Server {
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	testLogger := logger.NewTestLogger()

	var tracker *track.Tracker
	if withTracker {
		tracker = track.NewTracker(&stubSource{height: 1234}, 20*time.Millisecond, testLogger, nil)
		require.NoError(t, tracker.Start())
		t.Cleanup(tracker.Stop)
		waitForTrackedHeight(t, tracker, 1234)
	}

	server := NewServer(cfg, tracker, nil, testLogger)
	t.Cleanup(func() { server.Stop() })

	return server
}

func waitForTrackedHeight(t *testing.T, tracker *track.Tracker, want int64) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tracker.CurrentHeight() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("tracker never observed height %d", want)
}

func TestNewServer(t *testing.T) {
	// Arrange & Act
	server := setupTestServer(t, true)

	// Assert
	assert.NotNil(t, server)
	assert.NotNil(t, server.router)
	assert.NotNil(t, server.logger)
	assert.NotNil(t, server.config)
	assert.NotNil(t, server.tracker)
	assert.NotNil(t, server.wsBroadcast)
	assert.Nil(t, server.auth, "auth should be disabled by default")
	assert.Equal(t, config.DefaultAPIPort, server.port)
}

func TestNewServerWithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.APIEnableAuth = true
	cfg.APIJWTSecret = "test-secret"

	server := NewServer(cfg, nil, nil, logger.NewTestLogger())
	defer server.Stop()

	assert.NotNil(t, server.auth)
}

func TestHealthHandler(t *testing.T) {
	// Arrange
	server := setupTestServer(t, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)

	// Act
	server.router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "healthy", response["status"])
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name        string
		withTracker bool
		wantCode    int
		wantStatus  string
	}{
		{
			name:        "not ready without tracker",
			withTracker: false,
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  "not_ready",
		},
		{
			name:        "ready once height observed",
			withTracker: true,
			wantCode:    http.StatusOK,
			wantStatus:  "ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			server := setupTestServer(t, tt.withTracker)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/ready", nil)

			// Act
			server.router.ServeHTTP(w, req)

			// Assert
			assert.Equal(t, tt.wantCode, w.Code)

			var response map[string]interface{}
			err := json.Unmarshal(w.Body.Bytes(), &response)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, response["status"])
		})
	}
}

func TestGetHeight(t *testing.T) {
	// Arrange
	server := setupTestServer(t, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/height", nil)

	// Act
	server.router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)

	var snap track.Snapshot
	err := json.Unmarshal(w.Body.Bytes(), &snap)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), snap.Height)
	assert.Equal(t, "stub", snap.Source)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestGetHeightWithoutTracker(t *testing.T) {
	server := setupTestServer(t, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/height", nil)

	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetStatus(t *testing.T) {
	// Arrange
	server := setupTestServer(t, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/status", nil)

	// Act
	server.router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "running", response["status"])
	assert.Equal(t, version.Version, response["version"])
	assert.Equal(t, float64(1234), response["height"])

	tracking, ok := response["tracking"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, tracking["enabled"])
}

func TestGetVersion(t *testing.T) {
	server := setupTestServer(t, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/version", nil)

	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, version.Version, response["version"])
	assert.Equal(t, "v1", response["api"])
}

func TestGetConfig(t *testing.T) {
	server := setupTestServer(t, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/config", nil)

	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSource, response["source"])
	assert.Contains(t, response, "rpc_addresses")
	assert.Contains(t, response, "poll_interval")
}

func TestAuthProtectsAPIRoutes(t *testing.T) {
	// Arrange
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.APIEnableAuth = true
	cfg.APIJWTSecret = "test-secret"

	server := NewServer(cfg, nil, nil, logger.NewTestLogger())
	defer server.Stop()

	// Act & Assert - no token
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/status", nil)
	server.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Act & Assert - valid token
	token, err := server.auth.GenerateJWT("operator", []string{"admin"})
	require.NoError(t, err)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	server.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Act & Assert - health stays open
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health", nil)
	server.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
