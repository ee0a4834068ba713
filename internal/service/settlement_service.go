package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/liontaxi/settlement-engine/internal/config"
	"github.com/liontaxi/settlement-engine/internal/domain"
	"github.com/liontaxi/settlement-engine/internal/fare"
	"github.com/liontaxi/settlement-engine/internal/repository"
	customError "github.com/liontaxi/settlement-engine/pkg/errors"

	"github.com/google/uuid"
)

type SettlementService struct {
	Settlements repository.SettlementRepository
	Parties     repository.PartyRepository
	cache       Cache
	config      *config.Config
}

func NewSettlementService(
	settlementRepo repository.SettlementRepository,
	partyRepo repository.PartyRepository,
	cache Cache,
	config *config.Config,
) *SettlementService {
	return &SettlementService{
		Settlements: settlementRepo,
		Parties:     partyRepo,
		cache:       cache,
		config:      config,
	}
}

// CreateSettlement validates the submitted split against the party's
// roster and persists the settlement. The client computed the amounts;
// the server recomputes the split and rejects anything that does not
// match, so a drifted client cannot leave currency unaccounted for.
// Duplicate creations come back as a structured SETTLEMENT_ALREADY_EXISTS
// conflict which the client resolves through the current-settlement probe.
func (s *SettlementService) CreateSettlement(ctx context.Context, request *domain.CreateSettlementRequest) (*domain.Settlement, error) {
	if len(request.Participants) < s.config.Business.MinPartySize {
		return nil, customError.WrapSplitError(customError.ErrCodeNoCompanions, fare.ErrNoCompanions)
	}

	// A user listed twice would satisfy the recomputed split (equal base
	// shares) and only trip the unique constraint at insert time.
	seen := make(map[int64]struct{}, len(request.Participants))
	for _, p := range request.Participants {
		if _, dup := seen[p.UserID]; dup {
			return nil, customError.WrapDuplicateParticipant(p.UserID)
		}
		seen[p.UserID] = struct{}{}
	}

	party, err := s.Parties.GetByID(ctx, request.TaxiPartyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPartyNotFound(request.TaxiPartyID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	expected, err := s.expectedShares(request, party.HostID)
	if err != nil {
		return nil, err
	}

	if sum := fare.Total(expected); sum != request.TotalFare {
		return nil, customError.WrapAmountMismatch(request.TotalFare, sum)
	}
	for i, p := range request.Participants {
		if p.Amount != expected[i].Amount {
			return nil, customError.WrapAmountMismatch(request.TotalFare, sumShares(request.Participants))
		}
	}

	// Pre-check before insert; the unique index still backstops the
	// race between this lookup and the insert.
	existing, err := s.Settlements.GetCurrentByPartyID(ctx, request.TaxiPartyID)
	if err == nil && existing != nil {
		return nil, customError.WrapSettlementAlreadyExists(request.TaxiPartyID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapDatabaseError(err)
	}

	now := time.Now()
	settlement := &domain.Settlement{
		TaxiPartyID:   request.TaxiPartyID,
		TotalFare:     request.TotalFare,
		BankName:      request.BankName,
		AccountNumber: request.AccountNumber,
		Status:        domain.SettlementStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	participants := make([]*domain.SettlementParticipant, 0, len(request.Participants))
	for i, p := range request.Participants {
		isHost := p.UserID == party.HostID
		name, shortStudentID := riderIdentity(party, p.UserID)
		participants = append(participants, &domain.SettlementParticipant{
			ID:             uuid.New(),
			Position:       i,
			UserID:         p.UserID,
			Name:           name,
			ShortStudentID: shortStudentID,
			Amount:         p.Amount,
			Host:           isHost,
			// The host fronted the fare, so their own share starts paid.
			Paid: isHost,
		})
	}

	// Fill rider names from the request roster.
	requests, err := s.Parties.GetRequestsByPartyID(ctx, request.TaxiPartyID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	byUser := make(map[int64]*domain.RideRequest, len(requests))
	for _, r := range requests {
		byUser[r.UserID] = r
	}
	for _, p := range participants {
		if p.Name != "" {
			continue
		}
		if r, ok := byUser[p.UserID]; ok {
			p.Name = r.Name
			p.ShortStudentID = r.ShortStudentID
		}
	}

	if err := s.Settlements.Create(ctx, settlement, participants); err != nil {
		if errors.Is(err, customError.ErrSettlementAlreadyExists) {
			return nil, customError.WrapSettlementAlreadyExists(request.TaxiPartyID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	s.cache.InvalidateCurrent(ctx, request.TaxiPartyID)

	slog.Info("settlement created",
		"settlement_id", settlement.ID,
		"taxi_party_id", settlement.TaxiPartyID,
		"total_fare", settlement.TotalFare,
		"participants", len(participants),
	)

	return settlement, nil
}

// GetSettlement returns the settlement detail view.
func (s *SettlementService) GetSettlement(ctx context.Context, settlementID int64) (*domain.SettlementDetailResponse, error) {
	settlement, err := s.Settlements.GetByID(ctx, settlementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapSettlementNotFound(settlementID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	participants, err := s.Settlements.GetParticipants(ctx, settlementID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.SettlementDetailResponse{
		TaxiPartyID:   settlement.TaxiPartyID,
		TotalFare:     settlement.TotalFare,
		BankName:      settlement.BankName,
		AccountNumber: settlement.AccountNumber,
		IsSettled:     settlement.IsSettled(),
		Participants:  participants,
	}, nil
}

// GetCurrentSettlement answers the pre-creation probe. A party without
// a settlement is a normal answer, not an error.
func (s *SettlementService) GetCurrentSettlement(ctx context.Context, taxiPartyID int64) (*domain.CurrentSettlementResponse, error) {
	if current, ok := s.cache.GetCurrent(ctx, taxiPartyID); ok {
		return current, nil
	}

	settlement, err := s.Settlements.GetCurrentByPartyID(ctx, taxiPartyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.CurrentSettlementResponse{HasSettlement: false}, nil
		}
		return nil, customError.WrapDatabaseError(err)
	}

	current := &domain.CurrentSettlementResponse{
		HasSettlement: true,
		SettlementID:  settlement.ID,
		IsSettled:     settlement.IsSettled(),
	}
	s.cache.SetCurrent(ctx, taxiPartyID, current, s.config.GetCurrentCacheTTL())

	return current, nil
}

// MarkPaid records a participant's payment. Paying twice is a no-op.
// When the last unpaid participant pays, the settlement closes.
func (s *SettlementService) MarkPaid(ctx context.Context, settlementID, userID int64) error {
	settlement, err := s.Settlements.GetByID(ctx, settlementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapSettlementNotFound(settlementID)
		}
		return customError.WrapDatabaseError(err)
	}

	found, err := s.Settlements.MarkParticipantPaid(ctx, settlementID, userID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if !found {
		return customError.WrapParticipantNotFound(settlementID, userID)
	}

	unpaid, err := s.Settlements.CountUnpaid(ctx, settlementID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	if unpaid == 0 && !settlement.IsSettled() {
		if err := s.Settlements.MarkSettled(ctx, settlementID); err != nil {
			return customError.WrapDatabaseError(err)
		}
		s.cache.InvalidateCurrent(ctx, settlement.TaxiPartyID)
		slog.Info("settlement fully paid", "settlement_id", settlementID, "taxi_party_id", settlement.TaxiPartyID)
	}

	return nil
}

// Remind nudges unpaid participants, at most once per cooldown window.
// The notification transport is external; this records the attempt and
// enforces the throttle.
func (s *SettlementService) Remind(ctx context.Context, settlementID int64) (*domain.RemindResponse, error) {
	settlement, err := s.Settlements.GetByID(ctx, settlementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapSettlementNotFound(settlementID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	if settlement.IsSettled() {
		return nil, customError.WrapSettlementAlreadySettled(settlementID)
	}

	unpaid, err := s.Settlements.CountUnpaid(ctx, settlementID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if unpaid == 0 {
		return nil, customError.WrapSettlementAlreadySettled(settlementID)
	}

	acquired, err := s.cache.AcquireCooldown(ctx, RemindCooldownKey(settlementID), s.config.GetRemindCooldown())
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}
	if !acquired {
		return nil, customError.WrapRemindCooldown(settlementID)
	}

	slog.Info("reminder dispatched", "settlement_id", settlementID, "unpaid", unpaid)

	return &domain.RemindResponse{RemindedCount: unpaid}, nil
}

// SettleCompleted is the repair sweep: settlements whose participants
// all paid but whose status transition was missed get closed here.
func (s *SettlementService) SettleCompleted(ctx context.Context) (int, error) {
	ids, err := s.Settlements.ListFullyPaidPending(ctx)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	settled := 0
	for _, id := range ids {
		if err := s.Settlements.MarkSettled(ctx, id); err != nil {
			slog.Error("settle sweep failed", "settlement_id", id, "error", err)
			continue
		}
		settled++
	}

	return settled, nil
}

// RemindStale nudges settlements that have been pending longer than the
// configured age. Cooldown rejections are expected and skipped.
func (s *SettlementService) RemindStale(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.config.GetAutoRemindAfter())
	settlements, err := s.Settlements.ListUnsettledOlderThan(ctx, cutoff)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	reminded := 0
	for _, settlement := range settlements {
		if _, err := s.Remind(ctx, settlement.ID); err != nil {
			code := customError.CodeOf(err)
			if code == customError.ErrCodeRemindCooldown || code == customError.ErrCodeSettlementAlreadySettled {
				continue
			}
			slog.Error("remind sweep failed", "settlement_id", settlement.ID, "error", err)
			continue
		}
		reminded++
	}

	return reminded, nil
}

// expectedShares recomputes the split server-side from the submitted
// roster, with the host tagged by the party's hostId.
func (s *SettlementService) expectedShares(request *domain.CreateSettlementRequest, hostID int64) ([]fare.Share, error) {
	riders := make([]fare.Rider, 0, len(request.Participants))
	for _, p := range request.Participants {
		riders = append(riders, fare.Rider{UserID: p.UserID, Host: p.UserID == hostID})
	}

	shares, err := fare.Split(request.TotalFare, riders)
	if err != nil {
		return nil, customError.WrapSplitError(splitErrorCode(err), err)
	}

	return shares, nil
}

func splitErrorCode(err error) string {
	switch {
	case errors.Is(err, fare.ErrNoHost), errors.Is(err, fare.ErrMultipleHosts):
		return customError.ErrCodeNoHost
	case errors.Is(err, fare.ErrNoCompanions), errors.Is(err, fare.ErrNoParticipants):
		return customError.ErrCodeNoCompanions
	default:
		return customError.ErrCodeInvalidFare
	}
}

func sumShares(participants []domain.ParticipantShare) int64 {
	var sum int64
	for _, p := range participants {
		sum += p.Amount
	}
	return sum
}

func riderIdentity(party *domain.TaxiParty, userID int64) (name, shortStudentID string) {
	if userID == party.HostID {
		return party.HostName, party.HostShortStudentID
	}
	return "", ""
}
