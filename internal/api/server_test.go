package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geomag/geomagd/internal/auth"
	"github.com/geomag/geomagd/internal/field"
	"github.com/geomag/geomagd/internal/igrf"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testServer(t *testing.T, authCfg auth.Config, mutate func(*Deps)) http.Handler {
	t.Helper()
	store := igrf.NewStore(igrf.Default())
	deps := Deps{
		Store:         store,
		Evaluator:     field.NewEvaluator(store),
		Pool:          field.NewWorkerPool(2, testLogger()),
		GridMaxPoints: 1000,
	}
	if mutate != nil {
		mutate(&deps)
	}
	return NewServer(":0", testLogger(), authCfg, deps).HTTPServer().Handler
}

func TestFieldEndpoint(t *testing.T) {
	handler := testServer(t, auth.Config{}, nil)

	t.Run("reference point", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/field?time=2020-01-01&lat=0&lon=0&alt=0", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var resp struct {
			Epoch float64 `json:"epoch"`
			Unit  string  `json:"unit"`
			Field struct {
				North float64 `json:"north"`
				East  float64 `json:"east"`
				Down  float64 `json:"down"`
			} `json:"field"`
			Total float64 `json:"total"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Epoch != 2020 {
			t.Errorf("epoch = %v, want 2020", resp.Epoch)
		}
		if resp.Unit != "nT" {
			t.Errorf("unit = %q, want nT", resp.Unit)
		}
		if math.Abs(resp.Field.North-27540.0090) > 0.01 {
			t.Errorf("north = %v, want 27540.0090", resp.Field.North)
		}
		if math.Abs(resp.Total-31935.5001) > 0.01 {
			t.Errorf("total = %v, want 31935.5001", resp.Total)
		}
	})

	t.Run("microtesla scaling", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/field?time=2020-01-01&lat=0&lon=0&unit=uT", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		var resp struct {
			Unit  string `json:"unit"`
			Field struct {
				North float64 `json:"north"`
			} `json:"field"`
		}
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Unit != "uT" {
			t.Errorf("unit = %q, want uT", resp.Unit)
		}
		if math.Abs(resp.Field.North-27.5400090) > 1e-5 {
			t.Errorf("north = %v, want 27.54 uT", resp.Field.North)
		}
	})

	badRequests := []struct {
		name  string
		query string
	}{
		{"missing lat", "?time=2020-01-01&lon=0"},
		{"missing lon", "?time=2020-01-01&lat=0"},
		{"non-numeric lat", "?time=2020-01-01&lat=abc&lon=0"},
		{"latitude out of range", "?time=2020-01-01&lat=91&lon=0"},
		{"bad time", "?time=notadate&lat=0&lon=0"},
		{"epoch before model span", "?time=1850-01-01&lat=0&lon=0"},
		{"unknown unit", "?time=2020-01-01&lat=0&lon=0&unit=furlong"},
	}
	for _, tt := range badRequests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/field"+tt.query, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			var resp map[string]any
			json.NewDecoder(w.Body).Decode(&resp)
			if resp["error"] == nil {
				t.Error("expected error field in response")
			}
		})
	}
}

func TestFieldGeocentricEndpoint(t *testing.T) {
	handler := testServer(t, auth.Config{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/field/geocentric?time=2020-01-01&lat=0&lon=0&r=6371200", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Field struct {
			North float64 `json:"north"`
		} `json:"field"`
		Position struct {
			RadiusM float64 `json:"radius_m"`
		} `json:"position"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if math.Abs(resp.Field.North-27638.0311) > 0.01 {
		t.Errorf("north = %v, want 27638.0311", resp.Field.North)
	}
	if resp.Position.RadiusM != 6371200 {
		t.Errorf("radius echo = %v", resp.Position.RadiusM)
	}

	t.Run("missing radius", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/field/geocentric?time=2020-01-01&lat=0&lon=0", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

// TestGridCPUBudget verifies that requests exceeding the max points budget
// are rejected with 400 instead of consuming unbounded CPU.
func TestGridCPUBudget(t *testing.T) {
	handler := testServer(t, auth.Config{}, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "max budget exceeded: 181x361 one-degree grid",
			body:       `{"time":"2020-01-01","lat_start":-90,"lat_end":90,"lat_step":1,"lon_start":-180,"lon_end":180,"lon_step":1}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "within budget: coarse grid",
			body:       `{"time":"2020-01-01","lat_start":-60,"lat_end":60,"lat_step":30,"lon_start":-180,"lon_end":150,"lon_step":30}`,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/grid", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusBadRequest {
				var resp map[string]any
				json.NewDecoder(w.Body).Decode(&resp)
				if resp["error"] == nil {
					t.Error("expected error field in response")
				}
				if resp["max_positions"] == nil {
					t.Error("expected max_positions field in response")
				}
			}
		})
	}
}

func TestGridEndpoint(t *testing.T) {
	handler := testServer(t, auth.Config{}, nil)

	body := `{"time":"2020-01-01","lat_start":0,"lat_end":10,"lat_step":10,"lon_start":0,"lon_end":10,"lon_step":10}`
	req := httptest.NewRequest("POST", "/api/v1/grid", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count  int `json:"count"`
		Errors int `json:"errors"`
		Points []struct {
			LatitudeDeg  float64 `json:"latitude_deg"`
			LongitudeDeg float64 `json:"longitude_deg"`
			Field        struct {
				North float64 `json:"north"`
			} `json:"field"`
		} `json:"points"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 4 || resp.Errors != 0 || len(resp.Points) != 4 {
		t.Fatalf("count = %d, errors = %d, points = %d; want 4, 0, 4", resp.Count, resp.Errors, len(resp.Points))
	}
	// Row-major order: lat varies slowest.
	if resp.Points[0].LatitudeDeg != 0 || resp.Points[0].LongitudeDeg != 0 {
		t.Errorf("first point = (%v, %v), want (0, 0)", resp.Points[0].LatitudeDeg, resp.Points[0].LongitudeDeg)
	}
	if resp.Points[3].LatitudeDeg != 10 || resp.Points[3].LongitudeDeg != 10 {
		t.Errorf("last point = (%v, %v), want (10, 10)", resp.Points[3].LatitudeDeg, resp.Points[3].LongitudeDeg)
	}
	if math.Abs(resp.Points[0].Field.North-27540.0090) > 0.01 {
		t.Errorf("first point north = %v, want 27540.0090", resp.Points[0].Field.North)
	}

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/grid", strings.NewReader("{"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("zero step", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/grid", strings.NewReader(`{"lat_start":0,"lat_end":10,"lat_step":0,"lon_start":0,"lon_end":10,"lon_step":10}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestMetadataEndpoint(t *testing.T) {
	handler := testServer(t, auth.Config{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/model/metadata", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Source     string  `json:"source"`
		EpochStart float64 `json:"epoch_start"`
		EpochEnd   float64 `json:"epoch_end"`
		HasSV      bool    `json:"has_sv"`
		Snapshots  []struct {
			Epoch float64 `json:"epoch"`
			Kind  string  `json:"kind"`
		} `json:"snapshots"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Source != "embedded" {
		t.Errorf("source = %q, want embedded", resp.Source)
	}
	if resp.EpochStart != 1900 || resp.EpochEnd != 2020 {
		t.Errorf("span = %v..%v, want 1900..2020", resp.EpochStart, resp.EpochEnd)
	}
	if !resp.HasSV {
		t.Error("expected has_sv")
	}
	if len(resp.Snapshots) != 26 {
		t.Errorf("snapshots = %d, want 26", len(resp.Snapshots))
	}
	if last := resp.Snapshots[len(resp.Snapshots)-1]; last.Kind != "SV" {
		t.Errorf("last snapshot kind = %q, want SV", last.Kind)
	}
}

func TestReadyz(t *testing.T) {
	t.Run("not ready without model set", func(t *testing.T) {
		handler := testServer(t, auth.Config{}, func(d *Deps) {
			store := igrf.NewStore(nil)
			d.Store = store
			d.Evaluator = field.NewEvaluator(store)
		})
		req := httptest.NewRequest("GET", "/readyz", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})

	t.Run("ready with model set", func(t *testing.T) {
		handler := testServer(t, auth.Config{}, nil)
		req := httptest.NewRequest("GET", "/readyz", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}

func TestFetchEndpoint(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		handler := testServer(t, auth.Config{}, nil)
		req := httptest.NewRequest("POST", "/api/v1/model/fetch", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		called := false
		handler := testServer(t, auth.Config{}, func(d *Deps) {
			d.Refresh = func(ctx context.Context) error {
				called = true
				return nil
			}
		})
		req := httptest.NewRequest("POST", "/api/v1/model/fetch", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK || !called {
			t.Errorf("status = %d, called = %v", w.Code, called)
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		handler := testServer(t, auth.Config{}, func(d *Deps) {
			d.Refresh = func(ctx context.Context) error {
				return errors.New("upstream unreachable")
			}
		})
		req := httptest.NewRequest("POST", "/api/v1/model/fetch", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", w.Code)
		}
	})
}

func TestAuthIntegration(t *testing.T) {
	handler := testServer(t, auth.Config{Enabled: true, Token: "s3cret"}, nil)

	req := httptest.NewRequest("GET", "/api/v1/field?time=2020-01-01&lat=0&lon=0", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/field?time=2020-01-01&lat=0&lon=0", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", w.Code)
	}

	// Metadata stays public.
	req = httptest.NewRequest("GET", "/api/v1/model/metadata", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("metadata status = %d, want 200", w.Code)
	}
}
