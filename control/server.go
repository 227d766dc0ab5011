// Package control exposes the inbound action API over local HTTP. Each
// action answers a JSON envelope with a success flag; precondition
// failures are structured responses, not server errors.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/katmoor/dmscout/config"
	"github.com/katmoor/dmscout/scroll"
	"github.com/katmoor/dmscout/types"
)

// Navigator is the session surface the control API drives.
type Navigator interface {
	// Activate enables DM navigation for the open conversation.
	Activate(ctx context.Context) error
	// SetDateFilter sets the scroll target date.
	SetDateFilter(ctx context.Context, target time.Time) error
	// State reports the full navigation state.
	State(ctx context.Context) (types.NavigationStatus, error)
	// DetectReels runs one detection pass over the current page.
	DetectReels(ctx context.Context) ([]types.ReelRecord, error)
	// StoredReels returns the reels persisted for the conversation.
	StoredReels(ctx context.Context) ([]types.ReelRecord, error)
	// ScrollToMonthsAgo starts scrolling toward a date the given number
	// of months back. Returns scroll.ErrAlreadyScrolling when a session
	// is running.
	ScrollToMonthsAgo(ctx context.Context, months int) error
}

// actionRequest carries the optional parameters an action may take.
type actionRequest struct {
	Date   string `json:"date,omitempty"`
	Months int    `json:"months,omitempty"`
}

// Server serves the action API.
type Server struct {
	cfg    config.ControlConfig
	nav    Navigator
	logger *slog.Logger
}

func NewServer(cfg config.ControlConfig, nav Navigator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, nav: nav, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/actions/{action}", s.handleAction)
	return r
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("control api listening", slog.String("addr", s.cfg.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	var req actionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body")
			return
		}
	}
	s.logger.Debug("action received", slog.String("action", action))

	ctx := r.Context()
	switch action {
	case "ping":
		writeSuccess(w, map[string]any{"message": "pong"})
	case "activateDmNavigation":
		if err := s.nav.Activate(ctx); err != nil {
			writeError(w, err.Error())
			return
		}
		writeSuccess(w, nil)
	case "setDateFilter":
		target, err := parseDate(req.Date)
		if err != nil {
			writeError(w, err.Error())
			return
		}
		if err := s.nav.SetDateFilter(ctx, target); err != nil {
			writeError(w, err.Error())
			return
		}
		writeSuccess(w, map[string]any{"dateFilter": target.Format(time.RFC3339)})
	case "getCurrentState", "getStatus":
		state, err := s.nav.State(ctx)
		if err != nil {
			writeError(w, err.Error())
			return
		}
		writeSuccess(w, map[string]any{"state": state})
	case "detectReels":
		reels, err := s.nav.DetectReels(ctx)
		if err != nil {
			writeError(w, err.Error())
			return
		}
		writeSuccess(w, map[string]any{"count": len(reels), "reels": reels})
	case "getReelData":
		reels, err := s.nav.StoredReels(ctx)
		if err != nil {
			writeError(w, err.Error())
			return
		}
		writeSuccess(w, map[string]any{"count": len(reels), "reels": reels})
	case "scrollToTwoMonthsAgo":
		s.startScroll(ctx, w, 2)
	case "scrollToMonthsAgo":
		if req.Months <= 0 {
			writeError(w, "months must be a positive number")
			return
		}
		s.startScroll(ctx, w, req.Months)
	default:
		writeError(w, fmt.Sprintf("unknown action: %s", action))
	}
}

func (s *Server) startScroll(ctx context.Context, w http.ResponseWriter, months int) {
	if err := s.nav.ScrollToMonthsAgo(ctx, months); err != nil {
		if errors.Is(err, scroll.ErrAlreadyScrolling) {
			writeError(w, "scroll already in progress")
			return
		}
		writeError(w, err.Error())
		return
	}
	writeSuccess(w, map[string]any{"months": months})
}

// parseDate accepts a calendar date or a full RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("date parameter required")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable date: %s", s)
}

func writeSuccess(w http.ResponseWriter, payload map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
