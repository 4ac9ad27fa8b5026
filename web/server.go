// Package web serves the calendar engine as a local JSON API. It has no auth;
// run it on localhost.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"chargecal/calendar"
	"chargecal/chargeapi"
	"chargecal/controller"
	"chargecal/internal/timeutil"
	"chargecal/storage"
	"chargecal/timecharge"
)

type Options struct {
	// AllowedOrigins feeds the CORS handler. Empty allows any origin.
	AllowedOrigins []string
	Logger         *zerolog.Logger
	// Store, when set, also exposes the persistence routes under /api.
	Store *storage.SQLiteStore
}

type Server struct {
	ctrl   *controller.Controller
	logger zerolog.Logger
}

func NewServer(ctrl *controller.Controller, opts Options) http.Handler {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	server := &Server{ctrl: ctrl, logger: logger.With().Str("component", "web").Logger()}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(server.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/calendar", func(r chi.Router) {
		r.Get("/{period}/events", server.handleEvents)
		r.Get("/day/{date}/totals", server.handleDayTotals)
		r.Post("/validate", server.handleValidate)
		r.Post("/charges", server.handleCreate)
		r.Put("/charges/{id}", server.handleUpdate)
		r.Post("/charges/{id}/drag", server.handleDrag)
		r.Delete("/charges/{id}", server.handleDelete)
		r.Post("/reopen", server.handleReopen)
	})
	if opts.Store != nil {
		MountStore(r, opts.Store)
	}

	return r
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	period, err := timeutil.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period (expected YYYY-MM)")
		return
	}

	events, err := s.ctrl.Events(r.Context(), period)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PeriodView{Period: period.String(), Events: eventViews(events)})
}

func (s *Server) handleDayTotals(w http.ResponseWriter, r *http.Request) {
	date, err := timeutil.ParseDate(chi.URLParam(r, "date"), s.ctrl.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date (expected YYYY-MM-DD)")
		return
	}

	totals, err := s.ctrl.DayTotals(r.Context(), date)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DayTotalsView{Date: date.Format(timeutil.DateLayout), Totals: totals})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body validateRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	mode, err := parseMode(body.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	record, err := body.record(s.ctrl.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	record.Normalize()

	errs, err := s.ctrl.Validate(r.Context(), calendar.CandidateFromRecord(record), mode, strings.TrimSpace(body.EditingID))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidationView{Valid: errs.OK(), Errors: errs})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body chargeRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	record, err := body.record(s.ctrl.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.ctrl.Create(r.Context(), record)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordView(created))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body chargeRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	record, err := body.record(s.ctrl.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	record.ID = chi.URLParam(r, "id")

	updated, err := s.ctrl.Update(r.Context(), record)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordView(updated))
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	var body dragRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if body.Part < int(calendar.PartWhole) || body.Part > int(calendar.PartSecond) {
		writeError(w, http.StatusBadRequest, "part must be 0, 1 or 2")
		return
	}
	loc := s.ctrl.Location()
	newStart, err := timeutil.ParseLocal(body.Start, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("start: %v", err))
		return
	}
	newEnd, err := timeutil.ParseLocal(body.End, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("end: %v", err))
		return
	}

	ref := calendar.EventRef{RecordID: chi.URLParam(r, "id"), Part: calendar.PartIndex(body.Part)}
	event, ok := s.ctrl.Event(ref)
	if !ok {
		// Load the periods the gesture touches, then try again.
		for _, value := range []time.Time{newStart, newEnd} {
			if _, err := s.ctrl.Events(r.Context(), timeutil.PeriodOf(value)); err != nil {
				s.writeFailure(w, r, err)
				return
			}
		}
		event, ok = s.ctrl.Event(ref)
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("event %s is not loaded", ref))
		return
	}

	updated, err := s.ctrl.Drag(r.Context(), event, newStart, newEnd)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordView(updated))
}

// handleDelete accepts ?period=YYYY-MM (repeatable) naming the months to load
// before the status check.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()["period"]
	periods := make([]timeutil.Period, 0, len(values))
	for _, value := range values {
		period, err := timeutil.ParsePeriod(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		periods = append(periods, period)
	}
	if err := s.ctrl.Delete(r.Context(), chi.URLParam(r, "id"), periods...); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReopen(w http.ResponseWriter, r *http.Request) {
	var body reopenRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := s.ctrl.Reopen(r.Context(), body.IDs); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error      string            `json:"error"`
	Errors     calendar.ErrorMap `json:"errors,omitempty"`
	Suppressed bool              `json:"suppressed,omitempty"`
}

// writeFailure maps engine errors onto status codes. Drag failures carry
// suppressed=true so the client shows a single notification.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *controller.ValidationError
		rejection  *controller.ConflictRejection
		remote     *controller.RemoteFailure
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Errors: validation.Errors})
	case errors.As(err, &rejection):
		writeJSON(w, http.StatusConflict, errorResponse{Error: rejection.Reason})
	case errors.Is(err, controller.ErrReadOnly), errors.Is(err, controller.ErrNotDeletable):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, controller.ErrNotLoaded):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, controller.ErrMutationInFlight), errors.Is(err, timecharge.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &remote):
		s.logger.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("remote call failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Suppressed: remote.Suppressed})
	default:
		s.logger.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(started)).
				Msg("request")
		})
	}
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func statusForStoreError(err error) int {
	switch {
	case errors.Is(err, storage.ErrTimeChargeNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrTimeChargeLocked), errors.Is(err, timecharge.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, chargeapi.ErrInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
