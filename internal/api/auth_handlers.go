package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/example/hotel-distribution/internal/auth"
	"github.com/example/hotel-distribution/internal/domain/channel"
	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

type AuthHandlers struct {
	store      store.ChannelStore
	jwtService *auth.JWTService
}

func NewAuthHandlers(s store.ChannelStore, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{store: s, jwtService: jwtService}
}

type tokenRequest struct {
	HotelID     string `json:"hotel_id"`
	ChannelCode string `json:"channel_code"`
	Secret      string `json:"secret"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
}

// IssueToken exchanges a channel's shared secret for a hotel-scoped JWT.
// Direct channels are the hotel's own connection and get the manager role;
// everything else gets the channel role.
func (h *AuthHandlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.HotelID == "" || req.ChannelCode == "" || req.Secret == "" {
		http.Error(w, "hotel_id, channel_code and secret are required", http.StatusBadRequest)
		return
	}

	ch, err := h.store.FindChannelByCode(r.Context(), req.HotelID, req.ChannelCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same answer as a bad secret so callers cannot probe for channels.
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !auth.CheckSecret(req.Secret, ch.SecretHash) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	role := auth.RoleChannel
	if ch.Type == channel.TypeDirect {
		role = auth.RoleManager
	}

	token, expiresAt, err := h.jwtService.GenerateToken(ch.HotelID, ch.Code, role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		Role:        role,
	})
}
