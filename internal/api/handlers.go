package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"taxigrid/internal/dispatch"
	"taxigrid/internal/geom"
	"taxigrid/internal/logger"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

type Handler struct {
	store *dispatch.Store
	hub   *dispatch.Hub
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	height, size := h.store.Stats()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"treeHeight": height,
		"treeSize":   size,
	})
}

func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	var payload routeRequest
	if err := decodeValid(r, schemas.route, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	pickup, err := payload.Pickup.point()
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	var dropoff *geom.Point
	if payload.Dropoff != nil {
		d, err := payload.Dropoff.point()
		if err != nil {
			respondStoreError(w, r, err)
			return
		}
		if d == pickup {
			respondError(w, http.StatusBadRequest, "pickup and dropoff locations cannot be the same")
			return
		}
		dropoff = &d
	}

	res, err := h.store.Route(r.Context(), pickup, dropoff)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) BookTaxi(w http.ResponseWriter, r *http.Request) {
	var payload bookRequest
	if err := decodeValid(r, schemas.book, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	pickup, taxi, err := pointPair(payload.Pickup, payload.Taxi)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	booking, err := h.store.Book(r.Context(), pickup, taxi, idemKey)
	h.respondBooking(w, r, booking, err)
}

func (h *Handler) StartRide(w http.ResponseWriter, r *http.Request) {
	var payload startRideRequest
	if err := decodeValid(r, schemas.startRide, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	dropoff, taxi, err := pointPair(payload.Dropoff, payload.Taxi)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	booking, err := h.store.StartRide(r.Context(), dropoff, taxi)
	h.respondBooking(w, r, booking, err)
}

// respondBooking reports a move. A move that happened but could not be
// persisted is a 503 that still carries the booking.
func (h *Handler) respondBooking(w http.ResponseWriter, r *http.Request, b dispatch.Booking, err error) {
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, b)
	case errors.Is(err, dispatch.ErrPersist) && b.Success:
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":   dispatch.ErrPersist.Error(),
			"booking": b,
		})
	default:
		respondStoreError(w, r, err)
	}
}

func (h *Handler) ListTaxis(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.store.Fleet())
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultEventLimit)
	if err != nil || limit <= 0 {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	evts, total, err := h.store.Events(r.Context(), limit, offset)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if evts == nil {
		evts = []dispatch.FleetEvent{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"events": evts,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) Websocket(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	if !dispatch.KnownTopic(topic) {
		respondError(w, http.StatusNotFound, "unknown topic")
		return
	}
	h.hub.ServeTopic(w, r, topic)
}

func pointPair(a, b pointJSON) (geom.Point, geom.Point, error) {
	pa, err := a.point()
	if err != nil {
		return geom.Point{}, geom.Point{}, err
	}
	pb, err := b.point()
	if err != nil {
		return geom.Point{}, geom.Point{}, err
	}
	return pa, pb, nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dispatch.ErrOutOfBounds):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispatch.ErrTaxiNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dispatch.ErrPositionTaken):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrNoTaxis),
		errors.Is(err, dispatch.ErrNoEventLog),
		errors.Is(err, dispatch.ErrPersist),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.L().Error("request_failed", "path", r.URL.Path, "err", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
