package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/mshiraki/hibi/internal/apperror"
	"github.com/mshiraki/hibi/internal/auth"
	"github.com/mshiraki/hibi/internal/feed"
	"github.com/mshiraki/hibi/internal/handler"
	"github.com/mshiraki/hibi/internal/model"
	"github.com/mshiraki/hibi/internal/service"
)

// memEntryRepo is an in-memory repository.EntryRepository for handler tests.
// The handler goes through the real EntryService, so validation and feed
// publication behave exactly as in production.
type memEntryRepo struct {
	entries map[string]model.Entry
}

func newMemEntryRepo() *memEntryRepo {
	return &memEntryRepo{entries: make(map[string]model.Entry)}
}

func (m *memEntryRepo) Upsert(ctx context.Context, entry *model.Entry) error {
	m.entries[entry.ID] = *entry
	return nil
}

func (m *memEntryRepo) GetByID(ctx context.Context, userID, id string) (*model.Entry, error) {
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return nil, apperror.NotFound("entry", id)
	}
	return &e, nil
}

func (m *memEntryRepo) ListByUser(ctx context.Context, userID string) ([]model.Entry, error) {
	var out []model.Entry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (m *memEntryRepo) Delete(ctx context.Context, userID, id string) error {
	if e, ok := m.entries[id]; ok && e.UserID == userID {
		delete(m.entries, id)
	}
	return nil
}

// newEntryRouter wires the entry handler onto a chi router the same way
// server.go does, minus the auth middleware — tests stamp the userID into
// the request context directly.
func newEntryRouter(repo *memEntryRepo) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := service.NewEntryService(repo, feed.New(), logger)
	h := handler.NewEntryHandler(svc, logger)

	r := chi.NewRouter()
	r.Get("/api/entries", h.HandleList)
	r.Put("/api/entries/{id}", h.HandleUpsert)
	r.Delete("/api/entries/{id}", h.HandleDelete)
	return r
}

func authedRequest(method, target, body, userID string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
	}
	return req
}

func TestEntryHandler_HandleUpsert(t *testing.T) {
	t.Run("creates an entry", func(t *testing.T) {
		repo := newMemEntryRepo()
		router := newEntryRouter(repo)

		body := `{"date":"2024-03-10","title":"Morning","content":"Coffee first."}`
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, authedRequest(http.MethodPut, "/api/entries/e1", body, "user-1"))

		assert.Equal(t, http.StatusOK, rr.Code)

		var got model.Entry
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, "e1", got.ID)
		assert.Equal(t, "Morning", got.Title)

		stored, ok := repo.entries["e1"]
		assert.True(t, ok)
		assert.Equal(t, "user-1", stored.UserID)
	})

	t.Run("URL id wins over body id", func(t *testing.T) {
		repo := newMemEntryRepo()
		router := newEntryRouter(repo)

		body := `{"id":"spoofed","date":"2024-03-10"}`
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, authedRequest(http.MethodPut, "/api/entries/e1", body, "user-1"))

		assert.Equal(t, http.StatusOK, rr.Code)
		_, ok := repo.entries["spoofed"]
		assert.False(t, ok)
		_, ok = repo.entries["e1"]
		assert.True(t, ok)
	})

	t.Run("invalid date", func(t *testing.T) {
		repo := newMemEntryRepo()
		router := newEntryRouter(repo)

		body := `{"date":"10/03/2024"}`
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, authedRequest(http.MethodPut, "/api/entries/e1", body, "user-1"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid request body", func(t *testing.T) {
		repo := newMemEntryRepo()
		router := newEntryRouter(repo)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, authedRequest(http.MethodPut, "/api/entries/e1", `{"broken_json":`, "user-1"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("anonymous request", func(t *testing.T) {
		repo := newMemEntryRepo()
		router := newEntryRouter(repo)

		body := `{"date":"2024-03-10"}`
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, authedRequest(http.MethodPut, "/api/entries/e1", body, ""))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestEntryHandler_HandleList(t *testing.T) {
	repo := newMemEntryRepo()
	repo.entries["a"] = model.Entry{ID: "a", UserID: "user-1", Date: "2024-03-09"}
	repo.entries["b"] = model.Entry{ID: "b", UserID: "user-1", Date: "2024-03-10"}
	repo.entries["c"] = model.Entry{ID: "c", UserID: "someone-else", Date: "2024-03-10"}
	router := newEntryRouter(repo)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/api/entries", "", "user-1"))

	assert.Equal(t, http.StatusOK, rr.Code)

	var got []model.Entry
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	// Only user-1's entries, newest date first
	assert.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestEntryHandler_HandleDelete(t *testing.T) {
	t.Run("deletes an entry", func(t *testing.T) {
		repo := newMemEntryRepo()
		repo.entries["e1"] = model.Entry{ID: "e1", UserID: "user-1", Date: "2024-03-10"}
		router := newEntryRouter(repo)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, authedRequest(http.MethodDelete, "/api/entries/e1", "", "user-1"))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, repo.entries)
	})

	t.Run("absent id still succeeds", func(t *testing.T) {
		repo := newMemEntryRepo()
		router := newEntryRouter(repo)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, authedRequest(http.MethodDelete, "/api/entries/ghost", "", "user-1"))

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("cannot delete another user's entry", func(t *testing.T) {
		repo := newMemEntryRepo()
		repo.entries["e1"] = model.Entry{ID: "e1", UserID: "someone-else", Date: "2024-03-10"}
		router := newEntryRouter(repo)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, authedRequest(http.MethodDelete, "/api/entries/e1", "", "user-1"))

		// Looks idempotent from the outside, but the row survives
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Len(t, repo.entries, 1)
	})
}
