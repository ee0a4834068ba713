package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	SettlementStatusPending = "pending"
	SettlementStatusSettled = "settled"
)

// Settlement represents the fare-splitting record for one taxi party.
// At most one non-deleted settlement may exist per taxi party; the
// database enforces this with a partial unique index.
type Settlement struct {
	ID            int64      `json:"id" db:"id"`
	TaxiPartyID   int64      `json:"taxiPartyId" db:"taxi_party_id"`
	TotalFare     int64      `json:"totalFare" db:"total_fare"`
	BankName      string     `json:"bankName" db:"bank_name"`
	AccountNumber string     `json:"accountNumber" db:"account_number"`
	Status        string     `json:"status" db:"status"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt     *time.Time `json:"-" db:"deleted_at"`
}

func (s *Settlement) IsSettled() bool {
	return s.Status == SettlementStatusSettled
}

// SettlementParticipant is one rider's share of a settlement. Amount is
// in whole KRW; the host's share carries the division remainder.
type SettlementParticipant struct {
	ID             uuid.UUID  `json:"-" db:"id"`
	SettlementID   int64      `json:"-" db:"settlement_id"`
	Position       int        `json:"-" db:"position"`
	UserID         int64      `json:"userId" db:"user_id"`
	Name           string     `json:"name" db:"name"`
	ShortStudentID string     `json:"shortStudentId" db:"short_student_id"`
	Amount         int64      `json:"amount" db:"amount"`
	Host           bool       `json:"host" db:"host"`
	Paid           bool       `json:"paid" db:"paid"`
	PaidAt         *time.Time `json:"paidAt,omitempty" db:"paid_at"`
}

// DTOs for requests and responses

type ParticipantShare struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
	Amount int64 `json:"amount" validate:"gte=0"`
}

type CreateSettlementRequest struct {
	TaxiPartyID   int64              `json:"taxiPartyId" validate:"required,gt=0"`
	TotalFare     int64              `json:"totalFare" validate:"required,gt=0"`
	BankName      string             `json:"bankName" validate:"required"`
	AccountNumber string             `json:"accountNumber" validate:"required"`
	Participants  []ParticipantShare `json:"participants" validate:"required,min=2,dive"`
}

type CreateSettlementResponse struct {
	SettlementID int64 `json:"settlementId"`
}

type SettlementDetailResponse struct {
	TaxiPartyID   int64                    `json:"taxiPartyId"`
	TotalFare     int64                    `json:"totalFare"`
	BankName      string                   `json:"bankName"`
	AccountNumber string                   `json:"accountNumber"`
	IsSettled     bool                     `json:"isSettled"`
	Participants  []*SettlementParticipant `json:"participants"`
}

// CurrentSettlementResponse answers "does this party already have a
// settlement" for the pre-creation probe and post-conflict recovery.
type CurrentSettlementResponse struct {
	HasSettlement bool  `json:"hasSettlement"`
	SettlementID  int64 `json:"settlementId,omitempty"`
	IsSettled     bool  `json:"isSettled,omitempty"`
}

type RemindResponse struct {
	RemindedCount int `json:"remindedCount"`
}
