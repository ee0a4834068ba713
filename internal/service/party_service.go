package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/liontaxi/settlement-engine/internal/domain"
	"github.com/liontaxi/settlement-engine/internal/repository"
	customError "github.com/liontaxi/settlement-engine/pkg/errors"
)

type PartyService struct {
	Parties repository.PartyRepository
}

func NewPartyService(partyRepo repository.PartyRepository) *PartyService {
	return &PartyService{Parties: partyRepo}
}

// GetParty returns the party detail used by the settlement flow; the
// hostId field is what tags the host participant downstream.
func (s *PartyService) GetParty(ctx context.Context, taxiPartyID, userID int64) (*domain.PartyDetailResponse, error) {
	party, err := s.Parties.GetByID(ctx, taxiPartyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPartyNotFound(taxiPartyID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.PartyDetailResponse{
		Party:  party,
		IsHost: userID != 0 && userID == party.HostID,
	}, nil
}

// ListRequests returns every ride request of a party with its status;
// callers filter for ACCEPTED themselves.
func (s *PartyService) ListRequests(ctx context.Context, taxiPartyID int64) (*domain.PartyRequestsResponse, error) {
	if _, err := s.Parties.GetByID(ctx, taxiPartyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPartyNotFound(taxiPartyID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	requests, err := s.Parties.GetRequestsByPartyID(ctx, taxiPartyID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.PartyRequestsResponse{
		TaxiPartyID: taxiPartyID,
		Requests:    requests,
	}, nil
}
