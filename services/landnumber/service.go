package landnumber

import (
	"context"
	"easymap-backend/lib/landnumber"
	"easymap-backend/lib/scrapers/easymap"
	"easymap-backend/lib/towninfo"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Resolver is implemented by *landnumber.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, x, y float64) (landnumber.LandNumber, error)
}

type Service struct {
	resolver Resolver
	metrics  metrics
	gatherer prometheus.Gatherer
}

// NewService creates the http service, its metrics are registered in a
// registry of their own and served on /metrics.
func NewService(resolver Resolver) Service {
	reg := prometheus.NewRegistry()
	return Service{
		resolver: resolver,
		metrics:  newMetrics(reg),
		gatherer: reg,
	}
}

func (s Service) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /landnumber", s.handleLandNumber)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func (s Service) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct{}{})
}

func parseCoordinate(r *http.Request, key string) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, errors.New(key + " is required")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(key + " must be a number")
	}
	return value, nil
}

func parseQuery(r *http.Request) (longitude, latitude float64, err error) {
	longitude, err = parseCoordinate(r, "longitude")
	if err != nil {
		return 0, 0, err
	}
	latitude, err = parseCoordinate(r, "latitude")
	if err != nil {
		return 0, 0, err
	}
	if !inTaiwan(longitude, latitude) {
		return 0, 0, errors.New("coordinates are outside of taiwan")
	}
	return longitude, latitude, nil
}

// statusOf maps a resolution failure to the response status. A failed
// resolution is an ordinary miss and is answered with 200.
func statusOf(err error) (status int, kind string) {
	var resolutionErr *landnumber.ResolutionError
	var sessionErr *easymap.SessionError
	var fetchErr *towninfo.RemoteFetchError
	switch {
	case errors.As(err, &resolutionErr):
		return http.StatusOK, ""
	case errors.As(err, &sessionErr), errors.As(err, &fetchErr):
		return http.StatusBadGateway, failureUpstream
	default:
		return http.StatusInternalServerError, failureInternal
	}
}

func (s Service) handleLandNumber(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleLandNumber")
	defer span.End()

	start := time.Now()
	s.metrics.requestsTotal.Inc()
	defer func() {
		s.metrics.requestDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()

	longitude, latitude, err := parseQuery(r)
	if err != nil {
		s.metrics.failuresTotal.WithLabelValues(failureInvalidQuery).Inc()
		span.SetStatus(codes.Error, err.Error())
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	span.SetAttributes(
		attribute.Float64("landnumber.longitude", longitude),
		attribute.Float64("landnumber.latitude", latitude),
	)

	result, err := s.resolver.Resolve(ctx, longitude, latitude)
	if err == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}

	status, kind := statusOf(err)
	if status == http.StatusOK {
		slog.InfoContext(ctx, "no land number for point", "longitude", longitude, "latitude", latitude, "err", err)
		s.metrics.emptyResultsTotal.Inc()
		writeJSON(w, http.StatusOK, nil)
		return
	}

	slog.ErrorContext(ctx, "failed to resolve land number", "longitude", longitude, "latitude", latitude, "err", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, "failed to resolve land number")
	s.metrics.failuresTotal.WithLabelValues(kind).Inc()
	writeJSON(w, status, errorResponse{Error: http.StatusText(status)})
}
