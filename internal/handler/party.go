package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/liontaxi/settlement-engine/internal/domain"
	"github.com/liontaxi/settlement-engine/pkg/response"
)

// PartyService is the surface the party handler needs.
type PartyService interface {
	GetParty(ctx context.Context, taxiPartyID, userID int64) (*domain.PartyDetailResponse, error)
	ListRequests(ctx context.Context, taxiPartyID int64) (*domain.PartyRequestsResponse, error)
}

type PartyHandler struct {
	service PartyService
}

func NewPartyHandler(service PartyService) *PartyHandler {
	return &PartyHandler{service: service}
}

// Get handles GET /api/taxi-party/{partyId}?userId=
func (h *PartyHandler) Get(w http.ResponseWriter, r *http.Request) {
	taxiPartyID, ok := pathID(w, r, "partyId")
	if !ok {
		return
	}

	// userId is optional; without it the isHost flag is simply false.
	userID, _ := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)

	detail, err := h.service.GetParty(r.Context(), taxiPartyID, userID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, detail)
}

// Requests handles GET /api/taxi-party/{partyId}/requests
func (h *PartyHandler) Requests(w http.ResponseWriter, r *http.Request) {
	taxiPartyID, ok := pathID(w, r, "partyId")
	if !ok {
		return
	}

	requests, err := h.service.ListRequests(r.Context(), taxiPartyID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, requests)
}
