package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mshiraki/hibi/internal/model"
)

// SubscribeEntries opens the live snapshot stream (GET /api/entries/stream)
// and delivers each snapshot through onSnapshot.
//
// The connection is established synchronously so connection-time failures
// come back as the error return; after that a reader goroutine owns the
// stream. A failure mid-stream goes to onError and the goroutine exits —
// no automatic reconnect, matching the store's "no retry" contract.
//
// The userID parameter names whose collection this is, but the server
// scopes the stream by the bearer token; the value is not sent. Passing it
// anyway keeps the Collection interface honest about what the subscription
// is for.
func (c *Client) SubscribeEntries(userID string, onSnapshot func([]model.Entry), onError func(error)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/entries/stream", nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("api: building stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	// The default client enforces a total-request timeout, which would kill
	// a long-lived stream. Use a transport-only client for this request.
	res, err := (&http.Client{}).Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("api: opening stream: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		err := decodeServerError(res)
		res.Body.Close()
		cancel()
		return nil, err
	}

	go func() {
		defer res.Body.Close()
		c.readSnapshots(ctx, res, onSnapshot, onError)
	}()

	c.logger.Debug("entry stream opened", slog.String("userID", userID))
	return cancel, nil
}

// readSnapshots parses SSE frames off the stream until it ends.
//
// The server's framing is minimal: "event: <name>" and "data: <json>"
// lines, a blank line terminating each event. Unknown event names are
// skipped so the server can add frame types without breaking old clients.
func (c *Client) readSnapshots(ctx context.Context, res *http.Response, onSnapshot func([]model.Entry), onError func(error)) {
	scanner := bufio.NewScanner(res.Body)
	// Snapshots carry the whole collection; the default 64KB line cap is
	// too small for a long diary.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "":
			// End of frame
			if event == "snapshot" && data != "" {
				var entries []model.Entry
				if err := json.Unmarshal([]byte(data), &entries); err != nil {
					onError(fmt.Errorf("api: decoding snapshot: %w", err))
					return
				}
				onSnapshot(entries)
			}
			event, data = "", ""
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		// A genuine stream failure, not our own cancel.
		onError(fmt.Errorf("api: stream closed: %w", err))
		return
	}
	if ctx.Err() == nil {
		// EOF without cancellation: the server went away.
		onError(fmt.Errorf("api: stream ended unexpectedly"))
	}
}
