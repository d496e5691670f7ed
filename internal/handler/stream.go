package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mshiraki/hibi/internal/apperror"
	"github.com/mshiraki/hibi/internal/auth"
	"github.com/mshiraki/hibi/internal/model"
	"github.com/mshiraki/hibi/internal/service"
)

// StreamHandler serves the live entry-collection subscription over SSE.
//
// WHY SERVER-SENT EVENTS (and not WebSocket)?
// The subscription is strictly one-way — the server pushes snapshots, the
// client only listens (mutations go through the normal REST endpoints).
// SSE is plain HTTP: it goes through proxies, it works with EventSource in
// a browser and with a bufio scanner in the TUI client, and there is no
// upgrade handshake or framing protocol to get wrong.
//
// WIRE FORMAT: one SSE event per snapshot delivery —
//
//	event: snapshot
//	data: [{"id":"...","date":"2024-03-10",...}, ...]
//
// Every event carries the user's WHOLE collection. Consumers replace their
// state with each event; they never patch.
type StreamHandler struct {
	entries *service.EntryService
	logger  *slog.Logger
}

func NewStreamHandler(entries *service.EntryService, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{entries: entries, logger: logger}
}

// HandleStream subscribes the caller to their entry collection.
//
// HTTP: GET /api/entries/stream (RequireAuth)
//
// The handler blocks for the lifetime of the connection. The initial
// snapshot is sent immediately; afterwards one event per change. When the
// client disconnects, r.Context() is cancelled and the deferred cancel
// releases the feed subscription — nothing leaks.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.NotAuthenticated(""))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		// Streaming needs per-event flushing; without it events would sit
		// in a buffer until the connection closed.
		writeError(w, fmt.Errorf("response writer does not support flushing"))
		return
	}

	initial, updates, cancel, err := h.entries.Watch(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSnapshotEvent(w, flusher, initial); err != nil {
		return
	}

	h.logger.Info("stream opened", slog.String("userID", userID))

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("stream closed", slog.String("userID", userID))
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if err := writeSnapshotEvent(w, flusher, snapshot); err != nil {
				// Client went away mid-write; the context cancellation will
				// follow shortly. Nothing useful to do with the error.
				return
			}
		}
	}
}

// writeSnapshotEvent writes one SSE event and flushes it down the wire.
func writeSnapshotEvent(w http.ResponseWriter, flusher http.Flusher, entries []model.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	// The SSE framing: field lines, then a blank line terminates the event.
	// json.Marshal output contains no raw newlines, so one data: line is
	// always enough.
	if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
