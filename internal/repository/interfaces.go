package repository

import (
	"context"
	"time"

	"github.com/liontaxi/settlement-engine/internal/domain"
)

// SettlementRepository defines the interface for settlement data operations
type SettlementRepository interface {
	// Create inserts a settlement with its participants in one
	// transaction. Returns pkg/errors.ErrSettlementAlreadyExists when
	// the party already has a live settlement (unique violation).
	Create(ctx context.Context, settlement *domain.Settlement, participants []*domain.SettlementParticipant) error

	// GetByID retrieves a settlement by its ID
	GetByID(ctx context.Context, settlementID int64) (*domain.Settlement, error)

	// GetParticipants retrieves a settlement's participants in insertion order
	GetParticipants(ctx context.Context, settlementID int64) ([]*domain.SettlementParticipant, error)

	// GetCurrentByPartyID retrieves the live settlement for a taxi party
	GetCurrentByPartyID(ctx context.Context, taxiPartyID int64) (*domain.Settlement, error)

	// MarkParticipantPaid flips a participant's paid flag; returns
	// false when the participant does not exist
	MarkParticipantPaid(ctx context.Context, settlementID, userID int64) (bool, error)

	// CountUnpaid counts participants that have not paid yet
	CountUnpaid(ctx context.Context, settlementID int64) (int, error)

	// MarkSettled transitions a settlement to settled
	MarkSettled(ctx context.Context, settlementID int64) error

	// ListFullyPaidPending lists pending settlements whose participants
	// have all paid (repair sweep input)
	ListFullyPaidPending(ctx context.Context) ([]int64, error)

	// ListUnsettledOlderThan lists pending settlements created before cutoff
	ListUnsettledOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Settlement, error)
}

// PartyRepository defines the interface for taxi party data operations
type PartyRepository interface {
	// GetByID retrieves a taxi party by ID
	GetByID(ctx context.Context, taxiPartyID int64) (*domain.TaxiParty, error)

	// GetRequestsByPartyID retrieves all ride requests for a party
	GetRequestsByPartyID(ctx context.Context, taxiPartyID int64) ([]*domain.RideRequest, error)
}
