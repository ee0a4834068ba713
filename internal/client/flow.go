package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/liontaxi/settlement-engine/internal/domain"
	"github.com/liontaxi/settlement-engine/internal/fare"
	"github.com/liontaxi/settlement-engine/pkg/utils"
)

// ErrReconcileFailed means a creation attempt was rejected as a
// duplicate but the recovery lookup found nothing either. There is no
// safe automatic continuation from here.
var ErrReconcileFailed = errors.New("정산 ID를 다시 확인하지 못했습니다. 관리자에게 문의해주세요")

// FlowState carries the identifiers the settlement flow needs across
// its steps. It is passed explicitly and owned by the caller; nothing
// is stashed in ambient global state.
type FlowState struct {
	SettlementID int64
	ChatRoomID   int64
}

// FlowOutcome is the result of EnsureSettlement.
type FlowOutcome struct {
	FlowState
	// AlreadyExisted: the pre-creation probe found an existing
	// settlement; no creation was attempted.
	AlreadyExisted bool
	// Recovered: creation was rejected as a duplicate and the id was
	// recovered through a second lookup.
	Recovered bool
}

// EnsureSettlement drives the creation protocol:
//
//  1. probe the party's current settlement; if one exists, hand its id
//     back instead of creating a second one
//  2. otherwise create
//  3. if creation fails as a duplicate, probe once more and treat a
//     recovered id as success
//
// The backend has no transactional create-or-get, so this emulates
// idempotency by lookup. The window between the probe and the create is
// closed by the backend's uniqueness constraint, which this protocol
// recognizes after the fact. There is exactly one recovery lookup and
// no retry loop.
func (c *Client) EnsureSettlement(ctx context.Context, request *domain.CreateSettlementRequest, chatRoomID int64) (*FlowOutcome, error) {
	current, err := c.CurrentSettlement(ctx, request.TaxiPartyID)
	if err != nil {
		return nil, err
	}
	if current.HasSettlement {
		return &FlowOutcome{
			FlowState:      FlowState{SettlementID: current.SettlementID, ChatRoomID: chatRoomID},
			AlreadyExisted: true,
		}, nil
	}

	settlementID, err := c.CreateSettlement(ctx, request)
	if err == nil {
		return &FlowOutcome{
			FlowState: FlowState{SettlementID: settlementID, ChatRoomID: chatRoomID},
		}, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsDuplicate() {
		return nil, err
	}

	c.log.Info("settlement creation conflicted, reconciling",
		"taxi_party_id", request.TaxiPartyID,
		"status", apiErr.Status,
		"code", apiErr.Code,
	)

	recovered, lookupErr := c.CurrentSettlement(ctx, request.TaxiPartyID)
	if lookupErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrReconcileFailed, lookupErr)
	}
	if !recovered.HasSettlement {
		return nil, ErrReconcileFailed
	}

	return &FlowOutcome{
		FlowState: FlowState{SettlementID: recovered.SettlementID, ChatRoomID: chatRoomID},
		Recovered: true,
	}, nil
}

// BuildSettlementRequest assembles a creation request from raw user
// input and the party's roster: fare text is reduced to digits, the
// account field is split into bank and number, accepted riders are
// collected with the host force-included, and the fare is split with
// the remainder on the host.
func (c *Client) BuildSettlementRequest(ctx context.Context, taxiPartyID, userID int64, fareText, accountText string) (*domain.CreateSettlementRequest, int64, error) {
	detail, err := c.Party(ctx, taxiPartyID, userID)
	if err != nil {
		return nil, 0, err
	}

	requests, err := c.PartyRequests(ctx, taxiPartyID)
	if err != nil {
		return nil, 0, err
	}

	totalFare := utils.ParseFare(fareText)
	riders := buildRiders(detail.Party, requests)

	shares, err := fare.Split(totalFare, riders)
	if err != nil {
		return nil, 0, err
	}

	bankName, accountNumber := utils.ParseAccount(accountText)

	participants := make([]domain.ParticipantShare, len(shares))
	for i, share := range shares {
		participants[i] = domain.ParticipantShare{UserID: share.UserID, Amount: share.Amount}
	}

	return &domain.CreateSettlementRequest{
		TaxiPartyID:   taxiPartyID,
		TotalFare:     totalFare,
		BankName:      bankName,
		AccountNumber: accountNumber,
		Participants:  participants,
	}, detail.Party.ChatRoomID, nil
}

// buildRiders filters the roster to ACCEPTED requests and force-adds
// the host, whose own join request may be absent from the list.
func buildRiders(party *domain.TaxiParty, requests []*domain.RideRequest) []fare.Rider {
	riders := make([]fare.Rider, 0, len(requests)+1)
	hostSeen := false

	for _, r := range requests {
		if r.Status != domain.RequestStatusAccepted {
			continue
		}
		isHost := r.UserID == party.HostID
		hostSeen = hostSeen || isHost
		riders = append(riders, fare.Rider{UserID: r.UserID, Host: isHost})
	}

	if !hostSeen {
		riders = append(riders, fare.Rider{UserID: party.HostID, Host: true})
	}

	return riders
}
