package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chargecal/chargeapi"
	"chargecal/internal/timeutil"
	"chargecal/storage"
)

type storeHandler struct {
	store *storage.SQLiteStore
}

type idsRequest struct {
	IDs []chargeapi.FlexibleID `json:"ids"`
}

func (b idsRequest) strings() []string {
	out := make([]string, 0, len(b.IDs))
	for _, id := range b.IDs {
		out = append(out, id.String())
	}
	return out
}

// MountStore exposes the SQLite store with the same routes chargeapi.HTTPClient
// calls, so a remote-mode client can run against a local store.
func MountStore(r chi.Router, store *storage.SQLiteStore) {
	h := &storeHandler{store: store}
	r.Route("/api/time-charges", func(r chi.Router) {
		r.Get("/", h.listTimeCharges)
		r.Post("/", h.createTimeCharge)
		r.Post("/reopen", h.statusChange(store.ReopenTimeCharges))
		r.Post("/approve", h.statusChange(func(ctx context.Context, ids []string) error {
			return store.Approve(ctx, ids...)
		}))
		r.Post("/decline", h.statusChange(func(ctx context.Context, ids []string) error {
			return store.Decline(ctx, ids...)
		}))
		r.Put("/{id}", h.updateTimeCharge)
		r.Delete("/{id}", h.deleteTimeCharge)
	})
	r.Get("/api/leaves", h.listLeaves)
	r.Post("/api/leaves", h.createLeave)
	r.Get("/api/holidays", h.listHolidays)
	r.Post("/api/holidays", h.createHolidays)
}

func (h *storeHandler) listTimeCharges(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year is required")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be 1-12")
		return
	}

	charges, err := h.store.ListTimeCharges(r.Context(), year, time.Month(month))
	if err != nil {
		writeError(w, statusForStoreError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, charges)
}

func (h *storeHandler) createTimeCharge(w http.ResponseWriter, r *http.Request) {
	var payload chargeapi.Payload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	result, err := h.store.CreateTimeCharge(r.Context(), payload)
	if err != nil {
		writeError(w, statusForStoreError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *storeHandler) updateTimeCharge(w http.ResponseWriter, r *http.Request) {
	var payload chargeapi.Payload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	result, err := h.store.UpdateTimeCharge(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, statusForStoreError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *storeHandler) deleteTimeCharge(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTimeCharge(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusForStoreError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *storeHandler) statusChange(apply func(context.Context, []string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body idsRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if len(body.IDs) == 0 {
			writeError(w, http.StatusBadRequest, "ids are required")
			return
		}
		if err := apply(r.Context(), body.strings()); err != nil {
			writeError(w, statusForStoreError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *storeHandler) listLeaves(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.rangeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	leaves, err := h.store.ListLeaves(r.Context(), start, end, start.Year())
	if err != nil {
		writeError(w, statusForStoreError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, leaves)
}

func (h *storeHandler) createLeave(w http.ResponseWriter, r *http.Request) {
	var leave chargeapi.Leave
	if err := decodeJSON(r, &leave); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	id, err := h.store.InsertLeave(r.Context(), leave)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, chargeapi.MutationResult{ID: chargeapi.FlexibleID(id), Message: "created"})
}

func (h *storeHandler) listHolidays(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.rangeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	holidays, err := h.store.ListHolidays(r.Context(), start, end, start.Year())
	if err != nil {
		writeError(w, statusForStoreError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, holidays)
}

func (h *storeHandler) createHolidays(w http.ResponseWriter, r *http.Request) {
	var body chargeapi.Holidays
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	entries, err := body.Entries(h.store.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inserted, err := h.store.InsertHolidays(r.Context(), entries)
	if err != nil {
		writeError(w, statusForStoreError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"inserted": inserted})
}

func (h *storeHandler) rangeFromQuery(r *http.Request) (time.Time, time.Time, error) {
	loc := h.store.Location()
	start, err := timeutil.ParseDate(r.URL.Query().Get("start"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	end, err := timeutil.ParseDate(r.URL.Query().Get("end"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	return start, timeutil.EndOfDay(end), nil
}
