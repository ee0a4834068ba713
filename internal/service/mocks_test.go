package service

import (
	"context"
	"sync"
	"time"

	"github.com/liontaxi/settlement-engine/internal/domain"

	"github.com/stretchr/testify/mock"
)

type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) Create(ctx context.Context, settlement *domain.Settlement, participants []*domain.SettlementParticipant) error {
	args := m.Called(ctx, settlement, participants)
	return args.Error(0)
}

func (m *MockSettlementRepository) GetByID(ctx context.Context, settlementID int64) (*domain.Settlement, error) {
	args := m.Called(ctx, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) GetParticipants(ctx context.Context, settlementID int64) ([]*domain.SettlementParticipant, error) {
	args := m.Called(ctx, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SettlementParticipant), args.Error(1)
}

func (m *MockSettlementRepository) GetCurrentByPartyID(ctx context.Context, taxiPartyID int64) (*domain.Settlement, error) {
	args := m.Called(ctx, taxiPartyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) MarkParticipantPaid(ctx context.Context, settlementID, userID int64) (bool, error) {
	args := m.Called(ctx, settlementID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettlementRepository) CountUnpaid(ctx context.Context, settlementID int64) (int, error) {
	args := m.Called(ctx, settlementID)
	return args.Int(0), args.Error(1)
}

func (m *MockSettlementRepository) MarkSettled(ctx context.Context, settlementID int64) error {
	args := m.Called(ctx, settlementID)
	return args.Error(0)
}

func (m *MockSettlementRepository) ListFullyPaidPending(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockSettlementRepository) ListUnsettledOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Settlement, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Settlement), args.Error(1)
}

type MockPartyRepository struct {
	mock.Mock
}

func (m *MockPartyRepository) GetByID(ctx context.Context, taxiPartyID int64) (*domain.TaxiParty, error) {
	args := m.Called(ctx, taxiPartyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaxiParty), args.Error(1)
}

func (m *MockPartyRepository) GetRequestsByPartyID(ctx context.Context, taxiPartyID int64) ([]*domain.RideRequest, error) {
	args := m.Called(ctx, taxiPartyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RideRequest), args.Error(1)
}

// fakeCache is an in-memory Cache for tests. cooldownBusy simulates an
// already-held cooldown slot.
type fakeCache struct {
	mu           sync.Mutex
	cooldownBusy bool
	acquired     []string
	current      map[int64]*domain.CurrentSettlementResponse
	invalidated  []int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{current: make(map[int64]*domain.CurrentSettlementResponse)}
}

func (c *fakeCache) AcquireCooldown(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cooldownBusy {
		return false, nil
	}
	c.acquired = append(c.acquired, key)
	return true, nil
}

func (c *fakeCache) GetCurrent(_ context.Context, taxiPartyID int64) (*domain.CurrentSettlementResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.current[taxiPartyID]
	return current, ok
}

func (c *fakeCache) SetCurrent(_ context.Context, taxiPartyID int64, current *domain.CurrentSettlementResponse, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current[taxiPartyID] = current
}

func (c *fakeCache) InvalidateCurrent(_ context.Context, taxiPartyID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.current, taxiPartyID)
	c.invalidated = append(c.invalidated, taxiPartyID)
}
