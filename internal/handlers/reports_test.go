package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/auth"
	"github.com/straywatch/straywatch-api/internal/models"
	"github.com/straywatch/straywatch-api/internal/store"
)

func reportsRouter(gw store.Gateway) http.Handler {
	r := newEngine()
	RegisterReportRoutes(r, gw, auth.BearerMiddleware(testUsers, auth.DefaultMissingMessage))
	return r
}

func newReportStore() *store.MemoryStore {
	mem := store.NewMemoryStore()
	mem.SetClock(func() time.Time { return testNow })
	return mem
}

func TestReports_CreateSnapshotsContributor(t *testing.T) {
	mem := newReportStore()
	r := reportsRouter(mem)

	w := do(t, r, http.MethodPost, "/reports", "asha", map[string]any{
		"type": "bite", "lat": 34.15, "lng": 77.58, "notes": "  near market  ",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	rec := decode[models.IncidentRecord](t, w)
	assert.NotEmpty(t, rec.ID)
	assert.True(t, testNow.Equal(rec.CreatedAt))
	assert.Equal(t, 1, rec.Count, "count defaults to one")
	require.NotNil(t, rec.ContributorID)
	assert.Equal(t, "asha", *rec.ContributorID)
	require.NotNil(t, rec.ContributorName)
	assert.Equal(t, "Asha", *rec.ContributorName)
	require.NotNil(t, rec.Notes)
	assert.Equal(t, "near market", *rec.Notes)

	w = do(t, r, http.MethodPost, "/reports", "nameless", map[string]any{"type": "garbage", "lat": 0, "lng": 0, "count": 3})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, decode[models.IncidentRecord](t, w).ContributorName)
}

func TestReports_CreateValidation(t *testing.T) {
	mem := newReportStore()
	r := reportsRouter(mem)

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodPost, "/reports", "", map[string]any{"type": "bite"}).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodPost, "/reports", "stranger", map[string]any{"type": "bite"}).Code)

	bad := []any{
		`{not json`,
		map[string]any{"type": "cat", "lat": 1, "lng": 1},
		map[string]any{"type": "bite", "lat": 1},
		map[string]any{"type": "bite", "lat": 91, "lng": 1},
		map[string]any{"type": "bite", "lat": 1, "lng": -181},
		map[string]any{"type": "bite", "lat": 1, "lng": 1, "count": -2},
	}
	for _, body := range bad {
		w := do(t, r, http.MethodPost, "/reports", "asha", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", body)
	}

	all, err := mem.ListRecords(testContext(t), nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReports_OwnershipOnWrites(t *testing.T) {
	mem := newReportStore()
	mem.Seed(models.IncidentRecord{ID: "r1", Type: models.TypeSighting, Count: 1, ContributorID: strp("asha"), CreatedAt: testNow})
	r := reportsRouter(mem)

	w := do(t, r, http.MethodPatch, "/reports/r1", "nameless", map[string]any{"count": 5})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPatch, "/reports/missing", "asha", map[string]any{"count": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPatch, "/reports/r1", "asha", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPatch, "/reports/r1", "asha", map[string]any{"lat": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPatch, "/reports/r1", "asha", map[string]any{"count": 5, "type": "bite"})
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[models.IncidentRecord](t, w)
	assert.Equal(t, 5, rec.Count)
	assert.Equal(t, models.TypeBite, rec.Type)

	assert.Equal(t, http.StatusForbidden, do(t, r, http.MethodDelete, "/reports/r1", "nameless", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/reports/r1", "asha", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/reports/r1", "asha", nil).Code)
}

func TestReports_PatchBlankTextClearsField(t *testing.T) {
	mem := newReportStore()
	mem.Seed(models.IncidentRecord{
		ID: "r1", Type: models.TypeBite, Count: 1, ContributorID: strp("asha"),
		Severity: strp("high"), Notes: strp("near market"), CreatedAt: testNow,
	})
	r := reportsRouter(mem)

	w := do(t, r, http.MethodPatch, "/reports/r1", "asha", map[string]any{"notes": "   "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decode[models.IncidentRecord](t, w)
	assert.Nil(t, rec.Notes)
	require.NotNil(t, rec.Severity)
	assert.Equal(t, "high", *rec.Severity)

	w = do(t, r, http.MethodPatch, "/reports/r1", "asha", map[string]any{"severity": "", "notes": " dog limping "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec = decode[models.IncidentRecord](t, w)
	assert.Nil(t, rec.Severity)
	require.NotNil(t, rec.Notes)
	assert.Equal(t, "dog limping", *rec.Notes)

	stored, err := mem.ListByContributor(testContext(t), "asha")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Nil(t, stored[0].Severity)
}

func TestReports_ListAndMine(t *testing.T) {
	mem := newReportStore()
	mem.Seed(
		models.IncidentRecord{ID: "old", Type: models.TypeSighting, Count: 1, ContributorID: strp("asha"), CreatedAt: testNow.Add(-time.Hour)},
		models.IncidentRecord{ID: "new", Type: models.TypeGarbage, Count: 1, CreatedAt: testNow},
	)
	r := reportsRouter(mem)

	w := do(t, r, http.MethodGet, "/reports", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reportsCache, w.Header().Get("Cache-Control"))
	list := decode[[]models.IncidentRecord](t, w)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/reports/mine", "", nil).Code)

	w = do(t, r, http.MethodGet, "/reports/mine", "asha", nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[[]models.IncidentRecord](t, w)
	require.Len(t, mine, 1)
	assert.Equal(t, "old", mine[0].ID)

	w = do(t, r, http.MethodGet, "/reports/mine", "nameless", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestReports_GeoJSON(t *testing.T) {
	mem := newReportStore()
	mem.Seed(models.IncidentRecord{ID: "r1", Type: models.TypeBite, Lat: 34.15, Lng: 77.58, Count: 2, CreatedAt: testNow})

	w := do(t, reportsRouter(mem), http.MethodGet, "/reports.geojson", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, "r1", f.ID)
	require.True(t, f.Geometry.IsPoint())
	assert.Equal(t, []float64{77.58, 34.15}, f.Geometry.Point)
	assert.Equal(t, "bite", f.PropertyMustString("type"))
}

func TestReports_StoreFailure(t *testing.T) {
	r := reportsRouter(failingStore{})

	w := do(t, r, http.MethodGet, "/reports", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, r, http.MethodGet, "/reports.geojson", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var fc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc["type"])

	w = do(t, r, http.MethodPost, "/reports", "asha", map[string]any{"type": "bite", "lat": 1, "lng": 1})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
