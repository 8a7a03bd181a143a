package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/hotel-distribution/internal/api/middleware"
	"github.com/example/hotel-distribution/internal/domain/ari"
	"github.com/example/hotel-distribution/internal/domain/bulk"
	"github.com/example/hotel-distribution/internal/domain/restriction"
	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

type Handlers struct {
	saga     *ari.Saga
	bulk     *bulk.Processor
	quotes   *restriction.Service
	eventLog store.EventLog
}

func NewHandlers(saga *ari.Saga, bulkProcessor *bulk.Processor, quotes *restriction.Service, eventLog store.EventLog) *Handlers {
	return &Handlers{
		saga:     saga,
		bulk:     bulkProcessor,
		quotes:   quotes,
		eventLog: eventLog,
	}
}

// ARI event ingestion

type ingestEventRequest struct {
	EventID      string          `json:"event_id,omitempty"`
	Type         string          `json:"type"`
	RoomTypeCode string          `json:"room_type_code"`
	RatePlanCode string          `json:"rate_plan_code,omitempty"`
	From         string          `json:"from"`
	To           string          `json:"to"`
	Payload      json.RawMessage `json:"payload"`
	OccurredAt   *time.Time      `json:"occurred_at,omitempty"`
}

// IngestEvent accepts one ARI event and runs it through the processing
// pipeline synchronously. Domain failures come back in the body with
// success=false; a dead-lettered event is not an HTTP error.
func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req ingestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	from, err := store.ParseDate(req.From)
	if err != nil {
		http.Error(w, "from must be a YYYY-MM-DD date", http.StatusBadRequest)
		return
	}
	to, err := store.ParseDate(req.To)
	if err != nil {
		http.Error(w, "to must be a YYYY-MM-DD date", http.StatusBadRequest)
		return
	}

	ev := &store.ARIEvent{
		ID:           req.EventID,
		Type:         req.Type,
		HotelID:      claims.HotelID,
		RoomTypeCode: req.RoomTypeCode,
		RatePlanCode: req.RatePlanCode,
		ChannelCode:  claims.ChannelCode,
		From:         from,
		To:           to,
		Payload:      req.Payload,
	}
	if req.OccurredAt != nil {
		ev.OccurredAt = *req.OccurredAt
	}

	result, err := h.saga.Process(r.Context(), ev)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, result)
}

// Bulk updates

type bulkRequest struct {
	Operations []bulk.Operation `json:"operations"`
}

func (h *Handlers) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	hotelID := middleware.GetHotelID(r.Context())
	if hotelID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.bulk.ProcessBatch(r.Context(), hotelID, req.Operations)
	if err != nil {
		if errors.Is(err, bulk.ErrBatchTooLarge) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, result)
}

// Quote validation

type quoteRequest struct {
	RoomTypeCode string `json:"room_type_code"`
	RatePlanCode string `json:"rate_plan_code,omitempty"`
	CheckIn      string `json:"check_in"`
	CheckOut     string `json:"check_out"`
}

func (h *Handlers) ValidateQuote(w http.ResponseWriter, r *http.Request) {
	hotelID := middleware.GetHotelID(r.Context())
	if hotelID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	checkIn, err := store.ParseDate(req.CheckIn)
	if err != nil {
		http.Error(w, "check_in must be a YYYY-MM-DD date", http.StatusBadRequest)
		return
	}
	checkOut, err := store.ParseDate(req.CheckOut)
	if err != nil {
		http.Error(w, "check_out must be a YYYY-MM-DD date", http.StatusBadRequest)
		return
	}

	result, err := h.quotes.ValidateQuote(r.Context(), hotelID, req.RoomTypeCode, req.RatePlanCode, checkIn, checkOut)
	if err != nil {
		switch {
		case errors.Is(err, restriction.ErrInvalidStayRange):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, restriction.ErrRoomTypeNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Event inspection

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	hotelID := middleware.GetHotelID(r.Context())
	eventID := mux.Vars(r)["id"]

	ev, err := h.eventLog.Get(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Tokens are hotel-scoped; an event of another hotel does not exist for
	// this caller.
	if ev.HotelID != hotelID {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, ev)
}

func (h *Handlers) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	hotelID := middleware.GetHotelID(r.Context())

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := h.eventLog.ListDeadLetters(r.Context(), hotelID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []store.ARIEvent{}
	}

	respondJSON(w, http.StatusOK, events)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
