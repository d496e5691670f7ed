// Package handler contains the HTTP layer: request parsing, response
// writing, and nothing else. Business rules live in the service layer.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mshiraki/hibi/internal/apperror"
	"github.com/mshiraki/hibi/internal/auth"
	"github.com/mshiraki/hibi/internal/model"
	"github.com/mshiraki/hibi/internal/service"
)

// EntryHandler exposes the diary collection over HTTP.
//
// The surface is document-store shaped, because that's what the clients
// expect of it:
//
//	GET    /api/entries       → current snapshot, date descending
//	PUT    /api/entries/{id}  → upsert the document at {id}
//	DELETE /api/entries/{id}  → delete (idempotent)
//
// There is deliberately NO POST-create: ids are minted by the client when
// the user first saves, so creating and editing are the same PUT.
type EntryHandler struct {
	entries *service.EntryService
	logger  *slog.Logger
}

func NewEntryHandler(entries *service.EntryService, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{entries: entries, logger: logger}
}

// HandleList returns the authenticated user's entries, newest date first.
//
// HTTP: GET /api/entries (RequireAuth)
func (h *EntryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.NotAuthenticated(""))
		return
	}

	entries, err := h.entries.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// HandleUpsert saves the entry document at {id}.
//
// HTTP: PUT /api/entries/{id} (RequireAuth)
// BODY: {"date":"2024-03-10","title":"...","content":"..."}
//
// The URL id is authoritative — an id in the body is overwritten. The
// response is 200 with the stored record (timestamps filled in by the
// server); callers should not update their UI from it though: the change
// comes back through the subscription stream like any other.
func (h *EntryHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.NotAuthenticated(""))
		return
	}

	var entry model.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		h.logger.Warn("invalid entry JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	entry.ID = r.PathValue("id")

	if err := h.entries.Save(r.Context(), userID, &entry); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// HandleDelete removes the entry at {id}.
//
// HTTP: DELETE /api/entries/{id} (RequireAuth)
//
// Returns 204 even when the id never existed — delete is idempotent, and
// the end state (entry absent) is what the client asked for.
func (h *EntryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.NotAuthenticated(""))
		return
	}

	if err := h.entries.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
