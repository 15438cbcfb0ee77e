package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/geomag/geomagd/internal/field"
	"github.com/geomag/geomagd/internal/geodesy"
	"github.com/geomag/geomagd/internal/httputil"
	"github.com/geomag/geomagd/internal/igrf"
)

// fieldResponse is the JSON shape for point queries. Position echoes the
// request in the coordinate system it used.
type fieldResponse struct {
	Time           string       `json:"time"`
	Epoch          float64      `json:"epoch"`
	Position       any          `json:"position"`
	Unit           string       `json:"unit"`
	Field          field.Vector `json:"field"`
	Total          float64      `json:"total"`
	Horizontal     float64      `json:"horizontal"`
	InclinationDeg float64      `json:"inclination_deg"`
	DeclinationDeg float64      `json:"declination_deg"`
}

type geodeticEcho struct {
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	AltitudeM    float64 `json:"altitude_m"`
}

type geocentricEcho struct {
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	RadiusM      float64 `json:"radius_m"`
}

// timeParam parses the optional time query parameter, defaulting to now.
func timeParam(r *http.Request) (time.Time, error) {
	s := r.URL.Query().Get("time")
	if s == "" {
		return time.Now().UTC(), nil
	}
	return geodesy.ParseInstant(s)
}

// writeEvalError maps evaluation errors onto HTTP status codes.
func writeEvalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, field.ErrNoModelSet):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, igrf.ErrEpochOutOfRange),
		errors.Is(err, igrf.ErrEmptyModelSet),
		errors.Is(err, geodesy.ErrInvalidCoordinateKind):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func respond(w http.ResponseWriter, when time.Time, pos any, unit field.Unit, v field.Vector) {
	c := v.Components()
	httputil.WriteJSON(w, http.StatusOK, fieldResponse{
		Time:           when.Format(time.RFC3339),
		Epoch:          geodesy.FractionalYears(when),
		Position:       pos,
		Unit:           unit.Symbol(),
		Field:          v,
		Total:          c.Total,
		Horizontal:     c.Horizontal,
		InclinationDeg: c.InclinationDeg(),
		DeclinationDeg: c.DeclinationDeg(),
	})
}

func fieldHandler(logger *slog.Logger, ev *field.Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		when, err := timeParam(r)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		lat, err := httputil.RequiredFloatParam(r, "lat")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		lon, err := httputil.RequiredFloatParam(r, "lon")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		alt, err := httputil.FloatParam(r, "alt", 0)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		unit, err := field.ParseUnit(r.URL.Query().Get("unit"))
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if lat < -90 || lat > 90 {
			httputil.WriteError(w, http.StatusBadRequest, "lat must be in [-90, 90]")
			return
		}

		v, err := ev.FieldScaled(when, geodesy.NewWGS84(lat, lon, alt), unit)
		if err != nil {
			writeEvalError(w, err)
			return
		}
		respond(w, when, geodeticEcho{lat, lon, alt}, unit, v)
	}
}

func fieldGeocentricHandler(logger *slog.Logger, ev *field.Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		when, err := timeParam(r)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		lat, err := httputil.RequiredFloatParam(r, "lat")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		lon, err := httputil.RequiredFloatParam(r, "lon")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		radius, err := httputil.RequiredFloatParam(r, "r")
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		unit, err := field.ParseUnit(r.URL.Query().Get("unit"))
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if radius <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "r must be positive")
			return
		}

		v, err := ev.FieldScaled(when, geodesy.NewGeocentricSpherical(lat, lon, radius), unit)
		if err != nil {
			writeEvalError(w, err)
			return
		}
		respond(w, when, geocentricEcho{lat, lon, radius}, unit, v)
	}
}

// gridRequest describes a regular latitude/longitude grid evaluated at one
// instant and altitude.
type gridRequest struct {
	Time      string  `json:"time"`
	Unit      string  `json:"unit"`
	AltitudeM float64 `json:"altitude_m"`
	LatStart  float64 `json:"lat_start"`
	LatEnd    float64 `json:"lat_end"`
	LatStep   float64 `json:"lat_step"`
	LonStart  float64 `json:"lon_start"`
	LonEnd    float64 `json:"lon_end"`
	LonStep   float64 `json:"lon_step"`
}

type gridPointResponse struct {
	LatitudeDeg  float64      `json:"latitude_deg"`
	LongitudeDeg float64      `json:"longitude_deg"`
	Field        field.Vector `json:"field"`
}

type gridResponse struct {
	Time   string              `json:"time"`
	Epoch  float64             `json:"epoch"`
	Unit   string              `json:"unit"`
	Count  int                 `json:"count"`
	Errors int                 `json:"errors"`
	Points []gridPointResponse `json:"points"`
}

// axisSteps returns the number of samples on one grid axis, or 0 for an
// invalid range.
func axisSteps(start, end, step float64) int {
	if step <= 0 || end < start {
		return 0
	}
	return int(math.Floor((end-start)/step)) + 1
}

func gridHandler(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gridRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		when := time.Now().UTC()
		if req.Time != "" {
			var err error
			when, err = geodesy.ParseInstant(req.Time)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		unit, err := field.ParseUnit(req.Unit)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.LatStart < -90 || req.LatEnd > 90 {
			httputil.WriteError(w, http.StatusBadRequest, "latitude range must stay in [-90, 90]")
			return
		}

		latN := axisSteps(req.LatStart, req.LatEnd, req.LatStep)
		lonN := axisSteps(req.LonStart, req.LonEnd, req.LonStep)
		if latN == 0 || lonN == 0 {
			httputil.WriteError(w, http.StatusBadRequest, "grid ranges require end >= start and a positive step")
			return
		}

		total := latN * lonN
		if total > deps.GridMaxPoints {
			logger.Warn("grid request over budget",
				"requested", total,
				"max_positions", deps.GridMaxPoints,
			)
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error":         "grid exceeds the maximum number of points",
				"requested":     total,
				"max_positions": deps.GridMaxPoints,
			})
			return
		}

		positions := make([]geodesy.Position, 0, total)
		for i := 0; i < latN; i++ {
			lat := req.LatStart + float64(i)*req.LatStep
			for j := 0; j < lonN; j++ {
				lon := req.LonStart + float64(j)*req.LonStep
				positions = append(positions, geodesy.NewWGS84(lat, lon, req.AltitudeM))
			}
		}

		points, _, errCount := deps.Pool.EvaluateGrid(r.Context(), deps.Evaluator, when, positions)

		resp := gridResponse{
			Time:   when.Format(time.RFC3339),
			Epoch:  geodesy.FractionalYears(when),
			Unit:   unit.Symbol(),
			Count:  len(points),
			Errors: errCount,
			Points: make([]gridPointResponse, 0, len(points)),
		}
		for _, pt := range points {
			resp.Points = append(resp.Points, gridPointResponse{
				LatitudeDeg:  pt.Position.LatRad * 180 / math.Pi,
				LongitudeDeg: pt.Position.LonRad * 180 / math.Pi,
				Field:        pt.Vector.Scaled(unit),
			})
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

type snapshotInfo struct {
	Epoch float64 `json:"epoch"`
	Kind  string  `json:"kind"`
}

type metadataResponse struct {
	Source     string         `json:"source"`
	LoadedAt   string         `json:"loaded_at"`
	EpochStart float64        `json:"epoch_start"`
	EpochEnd   float64        `json:"epoch_end"`
	HasSV      bool           `json:"has_sv"`
	Snapshots  []snapshotInfo `json:"snapshots"`
}

func metadataHandler(store *igrf.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set := store.Get()
		if set == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "no model set loaded")
			return
		}

		first, last := set.EpochSpan()
		resp := metadataResponse{
			Source:     set.Source,
			LoadedAt:   set.LoadedAt.UTC().Format(time.RFC3339),
			EpochStart: first,
			EpochEnd:   last,
			HasSV:      set.HasSV(),
			Snapshots:  make([]snapshotInfo, 0, len(set.Models)),
		}
		for _, m := range set.Models {
			resp.Snapshots = append(resp.Snapshots, snapshotInfo{Epoch: m.Epoch, Kind: m.Kind.String()})
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func fetchHandler(logger *slog.Logger, refresh func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if refresh == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "coefficient fetching is disabled")
			return
		}
		if err := refresh(r.Context()); err != nil {
			logger.Error("on-demand coefficient fetch failed", "error", err)
			httputil.WriteError(w, http.StatusBadGateway, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
