package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/auth"
	"github.com/straywatch/straywatch-api/internal/identity"
	"github.com/straywatch/straywatch-api/internal/models"
)

var (
	testNow      = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	errStoreDown = errors.New("connection refused")
)

func strp(s string) *string { return &s }

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// tokenVerifier accepts "<user id>" tokens listed in users.
type tokenVerifier map[string]auth.User

func (v tokenVerifier) Verify(_ context.Context, token string) (auth.User, error) {
	u, ok := v[token]
	if !ok {
		return auth.User{}, auth.ErrInvalidToken
	}
	return u, nil
}

var testUsers = tokenVerifier{
	"asha": {
		ID:      "asha",
		Email:   "asha@example.org",
		Profile: identity.Profile{Name: identity.Some("Asha"), Origin: identity.Some("Leh")},
	},
	"nameless": {ID: "nameless"},
	"admin":    {ID: "admin", Email: "admin@straywatch.org"},
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// failingStore fails every read and write.
type failingStore struct{}

func (failingStore) ListRecords(context.Context, *time.Time) ([]models.IncidentRecord, error) {
	return nil, errStoreDown
}

func (failingStore) ListByContributor(context.Context, string) ([]models.IncidentRecord, error) {
	return nil, errStoreDown
}

func (failingStore) Insert(context.Context, models.IncidentRecord) (models.IncidentRecord, error) {
	return models.IncidentRecord{}, errStoreDown
}

func (failingStore) Update(context.Context, string, string, models.ReportPatch) (models.IncidentRecord, error) {
	return models.IncidentRecord{}, errStoreDown
}

func (failingStore) Remove(context.Context, string, string) error { return errStoreDown }

func (failingStore) InsertFeedback(context.Context, models.Feedback) (models.Feedback, error) {
	return models.Feedback{}, errStoreDown
}

func (failingStore) ListFeedback(context.Context) ([]models.Feedback, error) {
	return nil, errStoreDown
}

func (failingStore) Ping(context.Context) error { return errStoreDown }

// testContext stands in for t.Context (Go 1.24+): canceled when the test ends.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
