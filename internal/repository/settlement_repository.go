package repository

import (
	"context"
	"time"

	"github.com/liontaxi/settlement-engine/internal/domain"
	customError "github.com/liontaxi/settlement-engine/pkg/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

type settlementRepository struct {
	db *sqlx.DB
}

func NewSettlementRepository(db *sqlx.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

func (r *settlementRepository) Create(ctx context.Context, settlement *domain.Settlement, participants []*domain.SettlementParticipant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	settlementQuery := `
		INSERT INTO settlements (taxi_party_id, total_fare, bank_name, account_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err = tx.QueryRowxContext(ctx, settlementQuery,
		settlement.TaxiPartyID,
		settlement.TotalFare,
		settlement.BankName,
		settlement.AccountNumber,
		settlement.Status,
		settlement.CreatedAt,
		settlement.UpdatedAt,
	).Scan(&settlement.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return customError.ErrSettlementAlreadyExists
		}
		return err
	}

	participantQuery := `
		INSERT INTO settlement_participants (id, settlement_id, position, user_id, name, short_student_id, amount, host, paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, p := range participants {
		p.SettlementID = settlement.ID
		_, err = tx.ExecContext(ctx, participantQuery,
			p.ID,
			p.SettlementID,
			p.Position,
			p.UserID,
			p.Name,
			p.ShortStudentID,
			p.Amount,
			p.Host,
			p.Paid,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *settlementRepository) GetByID(ctx context.Context, settlementID int64) (*domain.Settlement, error) {
	query := `
		SELECT id, taxi_party_id, total_fare, bank_name, account_number, status, created_at, updated_at, deleted_at
		FROM settlements
		WHERE id = $1 AND deleted_at IS NULL
	`

	var settlement domain.Settlement
	if err := r.db.GetContext(ctx, &settlement, query, settlementID); err != nil {
		return nil, err
	}

	return &settlement, nil
}

func (r *settlementRepository) GetParticipants(ctx context.Context, settlementID int64) ([]*domain.SettlementParticipant, error) {
	query := `
		SELECT id, settlement_id, position, user_id, name, short_student_id, amount, host, paid, paid_at
		FROM settlement_participants
		WHERE settlement_id = $1
		ORDER BY position
	`

	var participants []*domain.SettlementParticipant
	if err := r.db.SelectContext(ctx, &participants, query, settlementID); err != nil {
		return nil, err
	}

	return participants, nil
}

func (r *settlementRepository) GetCurrentByPartyID(ctx context.Context, taxiPartyID int64) (*domain.Settlement, error) {
	query := `
		SELECT id, taxi_party_id, total_fare, bank_name, account_number, status, created_at, updated_at, deleted_at
		FROM settlements
		WHERE taxi_party_id = $1 AND deleted_at IS NULL
	`

	var settlement domain.Settlement
	if err := r.db.GetContext(ctx, &settlement, query, taxiPartyID); err != nil {
		return nil, err
	}

	return &settlement, nil
}

func (r *settlementRepository) MarkParticipantPaid(ctx context.Context, settlementID, userID int64) (bool, error) {
	// COALESCE keeps the first payment timestamp on repeat calls.
	query := `
		UPDATE settlement_participants
		SET paid = TRUE, paid_at = COALESCE(paid_at, $3)
		WHERE settlement_id = $1 AND user_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, settlementID, userID, time.Now())
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *settlementRepository) CountUnpaid(ctx context.Context, settlementID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM settlement_participants
		WHERE settlement_id = $1 AND paid = FALSE
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, settlementID); err != nil {
		return 0, err
	}

	return count, nil
}

func (r *settlementRepository) MarkSettled(ctx context.Context, settlementID int64) error {
	query := `
		UPDATE settlements
		SET status = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`

	_, err := r.db.ExecContext(ctx, query, settlementID, domain.SettlementStatusSettled, time.Now())
	return err
}

func (r *settlementRepository) ListFullyPaidPending(ctx context.Context) ([]int64, error) {
	query := `
		SELECT s.id
		FROM settlements s
		WHERE s.status = $1
		  AND s.deleted_at IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM settlement_participants p
			WHERE p.settlement_id = s.id AND p.paid = FALSE
		  )
		ORDER BY s.id
	`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, domain.SettlementStatusPending); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *settlementRepository) ListUnsettledOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Settlement, error) {
	query := `
		SELECT id, taxi_party_id, total_fare, bank_name, account_number, status, created_at, updated_at, deleted_at
		FROM settlements
		WHERE status = $1 AND deleted_at IS NULL AND created_at < $2
		ORDER BY created_at
	`

	var settlements []*domain.Settlement
	if err := r.db.SelectContext(ctx, &settlements, query, domain.SettlementStatusPending, cutoff); err != nil {
		return nil, err
	}

	return settlements, nil
}
