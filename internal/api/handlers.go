package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/dylan7474/planetaryLogger/internal/cache"
	"github.com/dylan7474/planetaryLogger/internal/elements"
	"github.com/dylan7474/planetaryLogger/internal/export"
	"github.com/dylan7474/planetaryLogger/internal/propagation"
)

// BodyResponse is one body's elements as served by the API.
type BodyResponse struct {
	Name                      string    `json:"name"`
	ID                        string    `json:"id"`
	Eccentricity              float64   `json:"eccentricity"`
	SemiMajorAxisAU           float64   `json:"semi_major_axis_au"`
	InclinationDeg            float64   `json:"inclination_deg"`
	LongitudeAscendingNodeDeg float64   `json:"longitude_ascending_node_deg"`
	ArgPeriapsisDeg           float64   `json:"arg_periapsis_deg"`
	MeanAnomalyAtEpochDeg     float64   `json:"mean_anomaly_at_epoch_deg"`
	Epoch                     time.Time `json:"epoch"`
	EpochJD                   float64   `json:"epoch_jd"`
	Valid                     bool      `json:"valid"`
}

// ElementsResponse is the current element set.
type ElementsResponse struct {
	Source    string         `json:"source"`
	FetchedAt time.Time      `json:"fetched_at"`
	EpochMin  time.Time      `json:"epoch_min"`
	EpochMax  time.Time      `json:"epoch_max"`
	Bodies    []BodyResponse `json:"bodies"`
}

// PositionsResponse is a generated time series.
type PositionsResponse struct {
	Mode   string           `json:"mode"`
	Start  string           `json:"start"`
	End    string           `json:"end"`
	Bodies []string         `json:"bodies"`
	Rows   []export.JSONRow `json:"rows"`
}

// CacheStatsResponse reports row cache state.
type CacheStatsResponse struct {
	Entries      int     `json:"entries"`
	MaxEntries   int     `json:"max_entries"`
	OldestDate   string  `json:"oldest_date,omitempty"`
	NewestDate   string  `json:"newest_date,omitempty"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRatio     float64 `json:"hit_ratio"`
	Evictions    int64   `json:"evictions"`
	Cutovers     int64   `json:"cutovers"`
	SetFetchedAt string  `json:"set_fetched_at,omitempty"`
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "keplersim",
		"endpoints": []string{
			"/api/v1/elements",
			"/api/v1/elements/{body}",
			"/api/v1/positions?start=YYYY-MM-DD&end=YYYY-MM-DD&mode=longitude|vector",
			"/api/v1/cache/stats",
			"/api/v1/stream/positions?start=YYYY-MM-DD&end=YYYY-MM-DD&mode=longitude|vector",
			"/viz/",
			"/healthz",
			"/readyz",
			"/metrics",
		},
	})
}

func toBodyResponse(b elements.Body) BodyResponse {
	el := b.Elements
	return BodyResponse{
		Name:                      b.Name,
		ID:                        b.ID,
		Eccentricity:              el.Eccentricity,
		SemiMajorAxisAU:           el.SemiMajorAxisAU,
		InclinationDeg:            el.InclinationDeg,
		LongitudeAscendingNodeDeg: el.LongitudeAscendingNodeDeg,
		ArgPeriapsisDeg:           el.ArgPeriapsisDeg,
		MeanAnomalyAtEpochDeg:     el.MeanAnomalyAtEpochDeg,
		Epoch:                     el.Epoch,
		EpochJD:                   julian.TimeToJD(el.Epoch),
		Valid:                     el.Validate() == nil,
	}
}

func elementsHandler(store *elements.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set := store.Get()
		if set == nil {
			writeError(w, http.StatusServiceUnavailable, "elements not loaded")
			return
		}

		resp := ElementsResponse{
			Source:    set.Source,
			FetchedAt: set.FetchedAt,
			Bodies:    make([]BodyResponse, len(set.Bodies)),
		}
		resp.EpochMin, resp.EpochMax = set.EpochRange()
		for i, b := range set.Bodies {
			resp.Bodies[i] = toBodyResponse(b)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func bodyHandler(store *elements.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set := store.Get()
		if set == nil {
			writeError(w, http.StatusServiceUnavailable, "elements not loaded")
			return
		}
		key := r.PathValue("body")
		for _, b := range set.Bodies {
			if strings.EqualFold(b.Name, key) || b.ID == key {
				writeJSON(w, http.StatusOK, toBodyResponse(b))
				return
			}
		}
		writeError(w, http.StatusNotFound, "body not found")
	}
}

func positionsHandler(logger *slog.Logger, rows *cache.RowCache, maxDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		if days > maxDays {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":    "date range too large",
				"days":     days,
				"max_days": maxDays,
			})
			return
		}

		generated, set, err := rows.Rows(r.Context(), start, end)
		if err != nil {
			if errors.Is(err, cache.ErrNotReady) {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			logger.Error("positions generation failed", "start", q.Get("start"), "end", q.Get("end"), "error", err)
			writeError(w, http.StatusInternalServerError, "generation failed")
			return
		}

		resp := PositionsResponse{
			Mode:   mode.String(),
			Start:  start.Format(time.DateOnly),
			End:    end.Format(time.DateOnly),
			Bodies: set.Names(),
			Rows:   make([]export.JSONRow, len(generated)),
		}
		for i, row := range generated {
			resp.Rows[i] = export.NewJSONRow(row, mode)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cacheStatsHandler(rows *cache.RowCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := rows.Stats()
		resp := CacheStatsResponse{
			Entries:    s.Entries,
			MaxEntries: s.MaxEntries,
			Hits:       s.Hits,
			Misses:     s.Misses,
			Evictions:  s.Evictions,
			Cutovers:   s.Cutovers,
		}
		if total := s.Hits + s.Misses; total > 0 {
			resp.HitRatio = float64(s.Hits) / float64(total)
		}
		if s.Entries > 0 {
			resp.OldestDate = s.OldestDate.Format(time.DateOnly)
			resp.NewestDate = s.NewestDate.Format(time.DateOnly)
		}
		if !s.SetFetchedAt.IsZero() {
			resp.SetFetchedAt = s.SetFetchedAt.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
