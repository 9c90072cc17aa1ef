package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"botpulse/internal/db"
	"botpulse/internal/scheduler"
)

type limitRange struct {
	def, min, max int
}

var (
	leaderboardLimit = limitRange{def: 20, min: 1, max: 100}
	perfLimit        = limitRange{def: 200, min: 1, max: 1000}
	historyLimit     = limitRange{def: 50, min: 1, max: 500}
)

// parseLimit reads ?limit=, falling back to the default when absent or not a
// number and clamping into range otherwise.
func parseLimit(r *http.Request, lr limitRange) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return lr.def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return lr.def
	}
	return min(max(n, lr.min), lr.max)
}

func parseBotID(r *http.Request) (uint64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bot id %q", raw)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type healthResponse struct {
	Status          string  `json:"status"`
	LastTickTS      *uint64 `json:"last_tick_ts"`
	LastBlockHeight *uint64 `json:"last_block_height"`
	StorageMode     string  `json:"storage_mode"`
	Version         string  `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		StorageMode: s.store.Mode(),
		Version:     s.version,
	}
	ctx := r.Context()
	if v, ok, err := s.store.GetStateUint(ctx, db.KeyLastTickTimestamp); err != nil {
		slog.Warn("health: reading last tick", "error", err)
		resp.Status = "degraded"
	} else if ok {
		resp.LastTickTS = &v
	}
	if v, ok, err := s.store.GetStateUint(ctx, db.KeyLastBlockHeight); err != nil {
		slog.Warn("health: reading last height", "error", err)
		resp.Status = "degraded"
	} else if ok {
		resp.LastBlockHeight = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

type leaderboardResponse struct {
	Limit   int                   `json:"limit"`
	Entries []db.LeaderboardEntry `json:"entries"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, leaderboardLimit)
	ctx := r.Context()
	key := "leaderboard:" + strconv.Itoa(limit)

	var resp leaderboardResponse
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &resp); err != nil {
			slog.Warn("cache read failed", "key", key, "error", err)
		} else if ok {
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	entries, err := s.store.Leaderboard(ctx, limit)
	if err != nil {
		slog.Error("leaderboard query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp = leaderboardResponse{Limit: limit, Entries: entries}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp, s.cfg.CacheTTL.Duration); err != nil {
			slog.Warn("cache write failed", "key", key, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type perfResponse struct {
	BotID  uint64                 `json:"bot_id"`
	Latest *db.PerformanceSample  `json:"latest"`
	Series []db.PerformanceSample `json:"series"`
}

func (s *Server) handleBotPerformance(w http.ResponseWriter, r *http.Request) {
	id, err := parseBotID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := parseLimit(r, perfLimit)

	series, err := s.store.PerformanceSeries(r.Context(), id, limit)
	if err != nil {
		slog.Error("performance query failed", "bot_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := perfResponse{BotID: id, Series: series}
	if len(series) > 0 {
		latest := series[len(series)-1]
		resp.Latest = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBotDecisions(w http.ResponseWriter, r *http.Request) {
	id, err := parseBotID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	decisions, err := s.store.RecentDecisions(r.Context(), id, parseLimit(r, historyLimit))
	if err != nil {
		slog.Error("decisions query failed", "bot_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if decisions == nil {
		decisions = []db.Decision{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bot_id": id, "decisions": decisions})
}

func (s *Server) handleBotTrades(w http.ResponseWriter, r *http.Request) {
	id, err := parseBotID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trades, err := s.store.RecentTrades(r.Context(), id, parseLimit(r, historyLimit))
	if err != nil {
		slog.Error("trades query failed", "bot_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trades == nil {
		trades = []db.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bot_id": id, "trades": trades})
}

// requireAdmin rejects requests unless the configured token is presented.
// With no token configured the endpoint is disabled.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			writeError(w, http.StatusForbidden, "admin endpoint disabled: no token configured")
			return
		}
		got := r.Header.Get(AdminTokenHeader)
		if got == "" {
			writeError(w, http.StatusUnauthorized, "missing "+AdminTokenHeader+" header")
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusForbidden, "invalid admin token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAdminTick(w http.ResponseWriter, r *http.Request) {
	// A client disconnect must not abort a tick that is already writing.
	sum, err := s.ticker.Tick(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, scheduler.ErrTickInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		slog.Error("admin tick failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		slog.Info("admin tick complete", "run_id", sum.RunID, "processed", sum.Processed)
		writeJSON(w, http.StatusOK, sum)
	}
}
