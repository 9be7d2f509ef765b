// Package stream serves generated time series as Server-Sent Events (SSE).
// Clients connect via GET /api/v1/stream/positions and receive one event per
// date as soon as it has been propagated, so ranges far larger than the JSON
// endpoint allows can be consumed incrementally.
//
// SSE message format:
//
//	data: {"type":"row","date":"2024-01-01","jd":2460310.5,"longitudes":[...]}\n\n
//
// The first message is always metadata and the last is either an end or an
// error message:
//
//	data: {"type":"metadata","bodies":["Mercury",...],"days":366,...}\n\n
//	data: {"type":"end","rows":366}\n\n
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/dylan7474/planetaryLogger/internal/elements"
	"github.com/dylan7474/planetaryLogger/internal/export"
	"github.com/dylan7474/planetaryLogger/internal/httputil"
	"github.com/dylan7474/planetaryLogger/internal/metrics"
	"github.com/dylan7474/planetaryLogger/internal/propagation"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int     // Max concurrent streams per IP (default: 4).
	MaxTotal           int     // Max concurrent streams overall (default: 256).
	MaxDays            int     // Largest range one stream may cover (default: 36600).
	RowsPerSecond      float64 // Pacing per stream; 0 sends rows as fast as they are computed.
	TrustProxy         bool
}

// Handler manages SSE streaming connections.
type Handler struct {
	gen     *propagation.Generator
	store   *elements.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(gen *propagation.Generator, store *elements.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP < 1 {
		config.MaxConcurrentPerIP = 4
	}
	if config.MaxTotal < 1 {
		config.MaxTotal = 256
	}
	if config.MaxDays < 1 {
		config.MaxDays = 36600
	}
	return &Handler{
		gen:     gen,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

// HandlePositions serves the SSE position stream.
// GET /api/v1/stream/positions?start=2024-01-01&end=2024-12-31&mode=longitude
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := time.Parse(time.DateOnly, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be a YYYY-MM-DD date")
		return
	}
	end := start
	if v := q.Get("end"); v != "" {
		if end, err = time.Parse(time.DateOnly, v); err != nil {
			writeError(w, http.StatusBadRequest, "end must be a YYYY-MM-DD date")
			return
		}
	}
	mode, err := export.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := propagation.DayCount(start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if days > h.config.MaxDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("date range too large: %d days, max %d", days, h.config.MaxDays))
		return
	}

	set := h.store.Get()
	if set == nil || len(set.Bodies) == 0 {
		writeError(w, http.StatusServiceUnavailable, "elements not loaded")
		return
	}

	// Enforce the concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, ok := h.limiter.acquire(ip)
	if !ok {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamsActive()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"start", start.Format(time.DateOnly),
		"days", days,
		"mode", mode.String(),
	)

	c := &client{
		w:      w,
		rc:     http.NewResponseController(w),
		logger: h.logger,
	}

	defer func() {
		release()
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)

	// Long ranges outlive the server's WriteTimeout.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered retry interval (3-7s) so a restart does not trigger a
	// reconnection storm.
	if err := c.sendRetry(3000 + rand.Intn(4000)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (retry)", "remote_ip", ip, "error", err)
		return
	}

	meta := metadataMessage{
		Type:          "metadata",
		Source:        set.Source,
		FetchedAt:     set.FetchedAt.UTC().Format(time.RFC3339),
		SetAgeSeconds: int(time.Since(set.FetchedAt).Seconds()),
		Bodies:        set.Names(),
		Mode:          mode.String(),
		Start:         start.Format(time.DateOnly),
		End:           end.Format(time.DateOnly),
		Days:          days,
	}
	if err := c.sendJSON(meta); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	var pacer *rate.Limiter
	if h.config.RowsPerSecond > 0 {
		pacer = rate.NewLimiter(rate.Limit(h.config.RowsPerSecond), 1)
	}

	ctx := r.Context()
	sent := 0
	err = h.gen.Stream(ctx, set, start, end, func(row propagation.Row) error {
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				return err
			}
		}
		if err := c.sendJSON(rowMessage{Type: "row", JSONRow: export.NewJSONRow(row, mode)}); err != nil {
			return errSend{err}
		}
		sent++
		return nil
	})

	var sendErr errSend
	switch {
	case err == nil:
		if err := c.sendJSON(endMessage{Type: "end", Rows: sent}); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (end)", "remote_ip", ip, "error", err)
		}
	case ctx.Err() != nil:
		metrics.IncStreamErrors("client_gone")
		h.logger.Debug("stream cancelled", "remote_ip", ip, "rows", sent)
	case errors.As(err, &sendErr):
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", "remote_ip", ip, "rows", sent, "error", err)
	default:
		metrics.IncStreamErrors("generation")
		h.logger.Error("stream generation failed", "remote_ip", ip, "rows", sent, "error", err)
		if err := c.sendJSON(errorMessage{Type: "error", Error: "generation failed"}); err != nil {
			h.logger.Debug("could not report stream error", "remote_ip", ip, "error", err)
		}
	}
}

// errSend marks failures writing to the client, as opposed to failures
// computing rows.
type errSend struct{ err error }

func (e errSend) Error() string { return e.err.Error() }
func (e errSend) Unwrap() error { return e.err }

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SSE message payload types.

type metadataMessage struct {
	Type          string   `json:"type"`
	Source        string   `json:"source"`
	FetchedAt     string   `json:"fetched_at"`
	SetAgeSeconds int      `json:"set_age_seconds"`
	Bodies        []string `json:"bodies"`
	Mode          string   `json:"mode"`
	Start         string   `json:"start"`
	End           string   `json:"end"`
	Days          int      `json:"days"`
}

type rowMessage struct {
	Type string `json:"type"`
	export.JSONRow
}

type endMessage struct {
	Type string `json:"type"`
	Rows int    `json:"rows"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
