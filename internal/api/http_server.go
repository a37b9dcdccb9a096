package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"staybooking/internal/config"
	"staybooking/internal/export"
	"staybooking/internal/metrics"
	"staybooking/internal/models"
	"staybooking/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyIdentity
)

// HTTPServer exposes the booking API.
type HTTPServer struct {
	cfg          config.APIConfig
	stays        *service.StayService
	reservations *service.ReservationService
	search       *service.SearchService
	readiness    *Readiness
	server       *http.Server
	auth         *HTTPAuth
	logger       *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	stays *service.StayService,
	reservations *service.ReservationService,
	search *service.SearchService,
	readiness *Readiness,
	logger *zerolog.Logger,
) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if readiness == nil {
		readiness = NewReadiness(0)
	}
	srv := &HTTPServer{
		cfg:          cfg,
		stays:        stays,
		reservations: reservations,
		search:       search,
		readiness:    readiness,
		auth:         NewHTTPAuth(cfg),
		logger:       logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

// Handler returns the full middleware chain; tests drive it with httptest.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /healthz", "healthz", s.handleHealthz, false)
	s.route(mux, "GET /readyz", "readyz", s.handleReadyz, false)

	s.route(mux, "GET /api/v1/search", "search", s.handleSearch, true)

	s.route(mux, "POST /api/v1/stays", "stays_create", s.handleCreateStay, true)
	s.route(mux, "GET /api/v1/stays", "stays_list", s.handleListStays, true)
	s.route(mux, "GET /api/v1/stays/{id}", "stays_get", s.handleGetStay, true)
	s.route(mux, "DELETE /api/v1/stays/{id}", "stays_delete", s.handleDeleteStay, true)
	s.route(mux, "GET /api/v1/stays/{id}/reservations", "stay_reservations", s.handleStayReservations, true)
	s.route(mux, "GET /api/v1/stays/{id}/reserved-dates", "stay_reserved_dates", s.handleReservedDates, true)

	s.route(mux, "POST /api/v1/reservations", "reservations_create", s.handleCreateReservation, true)
	s.route(mux, "GET /api/v1/reservations", "reservations_list", s.handleListReservations, true)
	s.route(mux, "GET /api/v1/reservations/{id}", "reservations_get", s.handleGetReservation, true)
	s.route(mux, "DELETE /api/v1/reservations/{id}", "reservations_cancel", s.handleCancelReservation, true)

	return s.requestIDMiddleware(s.loggingMiddleware(s.auth.Wrap(mux)))
}

func (s *HTTPServer) route(mux *http.ServeMux, pattern, name string, h http.HandlerFunc, needIdentity bool) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(name)
		if needIdentity {
			id := strings.TrimSpace(r.Header.Get(s.identityHeader()))
			if id == "" {
				writeError(w, http.StatusUnauthorized, fmt.Sprintf("%s header is required", s.identityHeader()))
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyIdentity, id))
		}
		h(w, r)
	})
}

func (s *HTTPServer) identityHeader() string {
	if s.cfg.IdentityHeader == "" {
		return "X-User-ID"
	}
	return s.cfg.IdentityHeader
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	failed := s.readiness.Check(r.Context())
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"failed": describeFailures(failed),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	guests, err := strconv.Atoi(strings.TrimSpace(q.Get("guest_number")))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: guest_number must be an integer", service.ErrInvalidGuestNumber))
		return
	}
	checkin, errIn := models.ParseDate(q.Get("checkin_date"))
	checkout, errOut := models.ParseDate(q.Get("checkout_date"))
	if errIn != nil || errOut != nil {
		s.fail(w, r, fmt.Errorf("%w: checkin_date and checkout_date must be YYYY-MM-DD", service.ErrInvalidSearchDate))
		return
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(q.Get("lat")), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(q.Get("lon")), 64)
	if errLat != nil || errLon != nil {
		s.fail(w, r, fmt.Errorf("%w: lat and lon are required", service.ErrInvalidLocation))
		return
	}

	stays, err := s.search.Search(r.Context(), service.SearchQuery{
		GuestNumber: guests,
		Checkin:     checkin,
		Checkout:    checkout,
		Location:    models.GeoPoint{Latitude: lat, Longitude: lon},
		Distance:    q.Get("distance"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stays": stays})
}

func (s *HTTPServer) handleCreateStay(w http.ResponseWriter, r *http.Request) {
	var in service.StayInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	stay, err := s.stays.AddStay(r.Context(), identity(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stay)
}

func (s *HTTPServer) handleListStays(w http.ResponseWriter, r *http.Request) {
	stays, err := s.stays.ListStays(r.Context(), identity(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stays": stays})
}

func (s *HTTPServer) handleGetStay(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stay, err := s.stays.GetStay(r.Context(), identity(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stay)
}

func (s *HTTPServer) handleDeleteStay(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.stays.DeleteStay(r.Context(), identity(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleStayReservations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stay, reservations, err := s.reservations.ListReservationsByStay(r.Context(), identity(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		var buf bytes.Buffer
		if err := export.WriteReservations(&buf, stay, reservations); err != nil {
			s.fail(w, r, fmt.Errorf("xlsx export: %w", err))
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(stay.ID)))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": toReservationResponses(reservations)})
}

// handleReservedDates отдаёт занятые ночи, календарь для хоста.
func (s *HTTPServer) handleReservedDates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	nights, err := s.reservations.ReservedDates(r.Context(), identity(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dates := make([]string, 0, len(nights))
	for _, d := range nights {
		dates = append(dates, d.Format(models.DateLayout))
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

type createReservationRequest struct {
	StayID       int64  `json:"stay_id"`
	CheckinDate  string `json:"checkin_date"`
	CheckoutDate string `json:"checkout_date"`
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.StayID <= 0 {
		s.fail(w, r, fmt.Errorf("%w: stay_id is required", errInvalidID))
		return
	}
	checkin, errIn := models.ParseDate(req.CheckinDate)
	checkout, errOut := models.ParseDate(req.CheckoutDate)
	if errIn != nil || errOut != nil {
		s.fail(w, r, fmt.Errorf("%w: checkin_date and checkout_date must be YYYY-MM-DD", service.ErrInvalidReservationDate))
		return
	}

	res, err := s.reservations.CreateReservation(r.Context(), identity(r), req.StayID, models.NewDateRange(checkin, checkout))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(*res))
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	list, err := s.reservations.ListReservationsByGuest(r.Context(), identity(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": toReservationResponses(list)})
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.reservations.GetReservation(r.Context(), identity(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(*res))
}

func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.reservations.CancelReservation(r.Context(), identity(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(w, s.logger, requestID(r), err)
}

type reservationResponse struct {
	ID           int64     `json:"id"`
	GuestID      string    `json:"guest_id"`
	StayID       int64     `json:"stay_id"`
	CheckinDate  string    `json:"checkin_date"`
	CheckoutDate string    `json:"checkout_date"`
	Nights       int       `json:"nights"`
	CreatedAt    time.Time `json:"created_at"`
}

func toReservationResponse(r models.Reservation) reservationResponse {
	return reservationResponse{
		ID:           r.ID,
		GuestID:      r.GuestID,
		StayID:       r.StayID,
		CheckinDate:  r.CheckinDate.Format(models.DateLayout),
		CheckoutDate: r.CheckoutDate.Format(models.DateLayout),
		Nights:       r.Range().Nights(),
		CreatedAt:    r.CreatedAt,
	}
}

func toReservationResponses(list []models.Reservation) []reservationResponse {
	out := make([]reservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationResponse(r))
	}
	return out
}

func (s *HTTPServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("request_id", requestID(r)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyRequestID).(string)
	return id
}

func identity(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyIdentity).(string)
	return id
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidID, r.PathValue("id"))
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSONBody, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
