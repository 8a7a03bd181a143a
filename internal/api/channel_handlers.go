package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/hotel-distribution/internal/api/middleware"
	"github.com/example/hotel-distribution/internal/domain/channel"
	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

type ChannelHandlers struct {
	validator *channel.Validator
	store     store.ChannelStore
}

func NewChannelHandlers(validator *channel.Validator, s store.ChannelStore) *ChannelHandlers {
	return &ChannelHandlers{validator: validator, store: s}
}

func (h *ChannelHandlers) ListChannels(w http.ResponseWriter, r *http.Request) {
	hotelID := middleware.GetHotelID(r.Context())

	channels, err := h.store.ListChannels(r.Context(), hotelID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if channels == nil {
		channels = []store.Channel{}
	}

	respondJSON(w, http.StatusOK, channels)
}

type modeResponse struct {
	ChannelID        string `json:"channel_id"`
	DistributionMode string `json:"distribution_mode"`
	ModeLockedAt     string `json:"mode_locked_at,omitempty"`
}

func (h *ChannelHandlers) GetMode(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	hotelID := middleware.GetHotelID(r.Context())

	ch, err := h.store.GetChannel(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "channel not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ch.HotelID != hotelID {
		http.Error(w, "channel not found", http.StatusNotFound)
		return
	}

	resp := modeResponse{ChannelID: ch.ID, DistributionMode: ch.DistributionMode}
	if !ch.ModeLockedAt.IsZero() {
		resp.ModeLockedAt = ch.ModeLockedAt.Format(time.RFC3339)
	}
	respondJSON(w, http.StatusOK, resp)
}

type setModeRequest struct {
	Mode  string `json:"mode"`
	Force bool   `json:"force,omitempty"`
}

// SetMode changes a channel's distribution mode. A change inside the cooling
// window is rejected unless forced; forcing records a warning in the audit
// trail instead.
func (h *ChannelHandlers) SetMode(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	if !h.ownsChannel(w, r, channelID) {
		return
	}

	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.validator.SetMode(r.Context(), channelID, req.Mode, req.Force)
	if err != nil {
		if errors.Is(err, channel.ErrChannelNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusConflict
	}
	respondJSON(w, status, result)
}

func (h *ChannelHandlers) ModeHistory(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	if !h.ownsChannel(w, r, channelID) {
		return
	}

	entries, err := h.validator.ModeHistory(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, channel.ErrChannelNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}

	respondJSON(w, http.StatusOK, entries)
}

// RunAudit runs the exclusivity audit over all channels of the caller's hotel.
func (h *ChannelHandlers) RunAudit(w http.ResponseWriter, r *http.Request) {
	hotelID := middleware.GetHotelID(r.Context())

	report, err := h.validator.AuditAllChannels(r.Context(), hotelID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// ownsChannel rejects requests for channels outside the token's hotel. A
// foreign channel reads as not found, never as forbidden.
func (h *ChannelHandlers) ownsChannel(w http.ResponseWriter, r *http.Request, channelID string) bool {
	hotelID := middleware.GetHotelID(r.Context())

	ch, err := h.store.GetChannel(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "channel not found", http.StatusNotFound)
			return false
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}
	if ch.HotelID != hotelID {
		http.Error(w, "channel not found", http.StatusNotFound)
		return false
	}
	return true
}
