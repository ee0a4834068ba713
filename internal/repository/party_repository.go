package repository

import (
	"context"

	"github.com/liontaxi/settlement-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type partyRepository struct {
	db *sqlx.DB
}

func NewPartyRepository(db *sqlx.DB) PartyRepository {
	return &partyRepository{db: db}
}

func (r *partyRepository) GetByID(ctx context.Context, taxiPartyID int64) (*domain.TaxiParty, error) {
	query := `
		SELECT id, host_id, host_name, host_short_student_id, origin, destination,
		       departure_at, capacity, status, chat_room_id, created_at
		FROM taxi_parties
		WHERE id = $1
	`

	var party domain.TaxiParty
	if err := r.db.GetContext(ctx, &party, query, taxiPartyID); err != nil {
		return nil, err
	}

	return &party, nil
}

func (r *partyRepository) GetRequestsByPartyID(ctx context.Context, taxiPartyID int64) ([]*domain.RideRequest, error) {
	query := `
		SELECT id, taxi_party_id, user_id, name, short_student_id, status, created_at
		FROM ride_requests
		WHERE taxi_party_id = $1
		ORDER BY created_at
	`

	var requests []*domain.RideRequest
	if err := r.db.SelectContext(ctx, &requests, query, taxiPartyID); err != nil {
		return nil, err
	}

	return requests, nil
}
