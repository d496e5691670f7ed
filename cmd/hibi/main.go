// Package main is the entry point for the hibi terminal client.
//
// The client is the counterpart of cmd/server: it signs in against the
// server's auth endpoints, subscribes to the live entry stream, and renders
// the diary in a bubbletea TUI. All state flows one way — the server
// confirms a change, the subscription delivers a new snapshot, the UI
// redraws. The client never shows unconfirmed local state.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mshiraki/hibi/internal/client/api"
	"github.com/mshiraki/hibi/internal/client/session"
	"github.com/mshiraki/hibi/internal/client/store"
	"github.com/mshiraki/hibi/internal/client/tui"
)

func main() {
	// === 1. LOGGING ===
	// The terminal belongs to the TUI, so logs can't go to stdout. They go
	// to a file next to the token; mostly useful when debugging transport
	// issues with HIBI_LOG=debug.
	logPath := filepath.Join(configDir(), "hibi.log")
	level := slog.LevelWarn
	if os.Getenv("HIBI_LOG") == "debug" {
		level = slog.LevelDebug
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		// No log file is not fatal; fall back to discarding via stderr,
		// which the TUI will hide anyway.
		logFile = os.Stderr
	} else {
		defer logFile.Close()
	}
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}))

	// === 2. CONFIGURATION ===
	// HIBI_SERVER: base URL of the server (default: local dev server).
	// HIBI_TOKEN_FILE: where the session token persists between runs.
	serverURL := os.Getenv("HIBI_SERVER")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	tokenFile := os.Getenv("HIBI_TOKEN_FILE")
	if tokenFile == "" {
		tokenFile = filepath.Join(configDir(), "token")
	}

	// === 3. WIRE THE CLIENT ===
	// The api.Client is both the identity provider (for the session) and
	// the document collection (for the store). Their onChange callbacks
	// poke the bubbletea program so feed deliveries repaint the UI.
	//
	// The session's startup resolution begins before the program exists,
	// so the hand-off goes through a Refresher rather than a bare variable
	// (its goroutine could otherwise race the assignment below).
	refresher := &tui.Refresher{}

	client := api.New(serverURL, tokenFile, logger)
	sess := session.New(client, refresher.Notify)
	defer sess.Close()
	st := store.New(client, refresher.Notify)
	defer st.Close()

	app := tui.NewApp(client, sess, st)
	program := tea.NewProgram(app, tea.WithAltScreen())
	refresher.Attach(program)

	// === 4. RUN ===
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "hibi: %v\n", err)
		os.Exit(1)
	}
}

// configDir returns ~/.config/hibi, creating it if needed. Falls back to
// the working directory when the home directory is unknown.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	dir := filepath.Join(home, ".config", "hibi")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "."
	}
	return dir
}
