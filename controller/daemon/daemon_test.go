package daemon

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

	"github.com/reef-pi/farmer/controller/modules/actuator"
	"github.com/reef-pi/farmer/controller/modules/registry"
	"github.com/reef-pi/farmer/controller/modules/relocation"
	"github.com/reef-pi/farmer/controller/modules/telemetry"
)

func devConfig(t *testing.T) Config {
	dir := t.TempDir()
	tel := telemetry.DefaultConfig()
	tel.Dir = filepath.Join(dir, "data")
	tel.Archive = filepath.Join(dir, "monitoringlog.csv")
	rel := relocation.DefaultConfig()
	rel.AckTimeout = time.Second
	return Config{
		DevMode:         true,
		HTTPAddr:        "127.0.0.1:0",
		ShutdownTimeout: time.Second,
		DBPath:          filepath.Join(dir, "farmer.db"),
		RegistryPath:    filepath.Join(dir, "positioning.json"),
		Positions:       6,
		Robot:           SerialConfig{Device: "/dev/ttyACM0", Baud: 9600},
		Sensor:          SerialConfig{Device: "/dev/ttyACM1", Baud: 115200},
		Relocation:      rel,
		Actuator:        actuator.DefaultConfig(),
		Telemetry:       tel,
	}
}

func TestFarm_DevModeAPI(t *testing.T) {
	f, err := New(devConfig(t))
	require.NoError(t, err)
	t.Cleanup(f.close)
	h := f.Handler()

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	rec := do(http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var positions []registry.Position
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&positions))
	assert.Len(t, positions, 6)

	require.Equal(t, http.StatusNoContent, do(http.MethodPut, "/api/positions/0", `{"booked":true,"species":"Basil"}`).Code)
	require.Equal(t, http.StatusOK, do(http.MethodPost, "/api/relocate", `{"from":0,"to":3}`).Code)

	p, err := f.registry.Get(3)
	require.NoError(t, err)
	assert.True(t, p.Booked)

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/lighting/config", "").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/telemetry/latest", "").Code)

	metrics := do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "farmer_registry_booked_positions 1")
}

func TestFarm_RunStopsOnCancel(t *testing.T) {
	f, err := New(devConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_BadStorePath(t *testing.T) {
	cfg := devConfig(t)
	cfg.DBPath = filepath.Join(t.TempDir(), "missing", "farmer.db")
	_, err := New(cfg)
	assert.Error(t, err)
}
