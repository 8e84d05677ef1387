package score

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wdf-server/internal/games"
	"wdf-server/internal/platform/config"
	"wdf-server/internal/platform/logger"
)

func newScoreRouter(store Store) *chi.Mux {
	reg := games.NewRegistry([]config.GameSettings{
		{Version: 2015, IsAvailable: true, WDF: true},
		{Version: 2014, IsAvailable: false, WDF: true},
	})
	h := NewHandler(store, reg, logger.Discard(), nil)
	r := chi.NewRouter()
	r.Post("/wdf/{version}/scores", h.Submit)
	return r
}

func TestHandler_Submit(t *testing.T) {
	store := NewMemoryStore()
	r := newScoreRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/wdf/2015/scores",
		strings.NewReader(`{"userId":"u1","sessionId":"s1","value":4200}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"value":4200`)

	n, err := store.Count(context.Background(), 2015)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHandler_Submit_errors(t *testing.T) {
	r := newScoreRouter(NewMemoryStore())

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad_version", "/wdf/abc/scores", `{}`, http.StatusBadRequest},
		{"disabled_edition", "/wdf/2014/scores", `{"userId":"u","sessionId":"s","value":1}`, http.StatusNotFound},
		{"bad_json", "/wdf/2015/scores", `{`, http.StatusBadRequest},
		{"missing_session", "/wdf/2015/scores", `{"userId":"u","value":1}`, http.StatusBadRequest},
		{"negative_value", "/wdf/2015/scores", `{"userId":"u","sessionId":"s","value":-1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
