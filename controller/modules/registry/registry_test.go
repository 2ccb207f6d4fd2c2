package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestRegistry(t *testing.T, size int) *Registry {
	t.Helper()
	r := New(filepath.Join(t.TempDir(), "positioning.json"), size)
	require.NoError(t, r.Load())
	return r
}

func readFile(t *testing.T, path string) []Position {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []Position
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestLoad_CreatesFreeRegistry(t *testing.T) {
	r := newTestRegistry(t, 4)

	positions := readFile(t, r.path)
	require.Len(t, positions, 4)
	for i, p := range positions {
		assert.Equal(t, Position{Position: i}, p)
	}
}

func TestLoad_RejectsMisindexedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positioning.json")
	data := `[{"position":0,"booked":false,"species":null},{"position":5,"booked":true,"species":"Basil"}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	err := New(path, 0).Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSetAndGet(t *testing.T) {
	r := newTestRegistry(t, 3)

	require.NoError(t, r.Set(1, true, strPtr("Lettuce")))
	p, err := r.Get(1)
	require.NoError(t, err)
	assert.True(t, p.Booked)
	assert.Equal(t, "Lettuce", *p.Species)

	booked, err := r.BookingState(1)
	require.NoError(t, err)
	assert.True(t, booked)

	// survives a reload
	reloaded := New(r.path, 0)
	require.NoError(t, reloaded.Load())
	p, err = reloaded.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Lettuce", *p.Species)

	require.NoError(t, r.Set(2, false, strPtr("None")))
	p, err = r.Get(2)
	require.NoError(t, err)
	assert.Nil(t, p.Species)
}

func TestGet_NotFound(t *testing.T) {
	r := newTestRegistry(t, 2)

	for _, pos := range []int{-1, 2, 100} {
		_, err := r.Get(pos)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = r.BookingState(pos)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, r.Set(pos, true, nil), ErrNotFound)
	}
}

func TestSwap(t *testing.T) {
	r := newTestRegistry(t, 2)
	require.NoError(t, r.Set(0, true, strPtr("Basil")))

	require.NoError(t, r.Swap(0, 1))

	positions := readFile(t, r.path)
	assert.Equal(t, Position{Position: 0}, positions[0])
	assert.True(t, positions[1].Booked)
	assert.Equal(t, "Basil", *positions[1].Species)
}

func TestSwap_OutOfRange(t *testing.T) {
	r := newTestRegistry(t, 2)
	require.NoError(t, r.Set(0, true, strPtr("Basil")))

	assert.ErrorIs(t, r.Swap(0, 2), ErrOutOfRange)
	assert.ErrorIs(t, r.Swap(-1, 1), ErrOutOfRange)

	p, err := r.Get(0)
	require.NoError(t, err)
	assert.True(t, p.Booked)
}

func TestSwap_SamePosition(t *testing.T) {
	r := newTestRegistry(t, 3)
	require.NoError(t, r.Set(2, true, strPtr("Mint")))

	assert.ErrorIs(t, r.Swap(2, 2), ErrSamePosition)

	p, err := r.Get(2)
	require.NoError(t, err)
	assert.True(t, p.Booked)
	require.NotNil(t, p.Species)
	assert.Equal(t, "Mint", *p.Species)
}

func TestPersistFailureKeepsState(t *testing.T) {
	r := newTestRegistry(t, 2)
	require.NoError(t, r.Set(0, true, strPtr("Basil")))

	r.path = filepath.Join(t.TempDir(), "missing", "positioning.json")

	assert.ErrorIs(t, r.Set(1, true, strPtr("Mint")), ErrPersistence)
	assert.ErrorIs(t, r.Swap(0, 1), ErrPersistence)

	list := r.List()
	assert.True(t, list[0].Booked)
	assert.False(t, list[1].Booked)
}

func TestLabel(t *testing.T) {
	r := newTestRegistry(t, 2)
	require.NoError(t, r.Set(0, true, strPtr("Basil")))

	label, err := r.Label(0)
	require.NoError(t, err)
	assert.Contains(t, label, "cultivated species: Basil")

	label, err = r.Label(1)
	require.NoError(t, err)
	assert.Contains(t, label, "no cultivated species")
}

func TestAPI(t *testing.T) {
	r := newTestRegistry(t, 2)
	router := mux.NewRouter()
	r.LoadAPI(router)

	req := httptest.NewRequest(http.MethodPut, "/api/positions/1", strings.NewReader(`{"booked":true,"species":"Chard"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var p Position
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, "Chard", *p.Species)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions/9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))
	var all []Position
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Len(t, all, 2)
}
