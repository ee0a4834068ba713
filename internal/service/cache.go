package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/liontaxi/settlement-engine/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Cache covers the two Redis concerns of the settlement service: the
// best-effort current-settlement lookup cache and the remind cooldown.
// Cache read/write failures degrade to the database; only cooldown
// acquisition surfaces errors because it gates a side effect.
type Cache interface {
	AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error)
	GetCurrent(ctx context.Context, taxiPartyID int64) (*domain.CurrentSettlementResponse, bool)
	SetCurrent(ctx context.Context, taxiPartyID int64, current *domain.CurrentSettlementResponse, ttl time.Duration)
	InvalidateCurrent(ctx context.Context, taxiPartyID int64)
}

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	// SET NX EX: first caller within the window wins, the rest are throttled.
	return c.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}

func (c *redisCache) GetCurrent(ctx context.Context, taxiPartyID int64) (*domain.CurrentSettlementResponse, bool) {
	raw, err := c.client.Get(ctx, currentKey(taxiPartyID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("current-settlement cache read failed", "taxi_party_id", taxiPartyID, "error", err)
		}
		return nil, false
	}

	var current domain.CurrentSettlementResponse
	if err := json.Unmarshal(raw, &current); err != nil {
		slog.Warn("current-settlement cache entry corrupt", "taxi_party_id", taxiPartyID, "error", err)
		return nil, false
	}

	return &current, true
}

func (c *redisCache) SetCurrent(ctx context.Context, taxiPartyID int64, current *domain.CurrentSettlementResponse, ttl time.Duration) {
	raw, err := json.Marshal(current)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, currentKey(taxiPartyID), raw, ttl).Err(); err != nil {
		slog.Warn("current-settlement cache write failed", "taxi_party_id", taxiPartyID, "error", err)
	}
}

func (c *redisCache) InvalidateCurrent(ctx context.Context, taxiPartyID int64) {
	if err := c.client.Del(ctx, currentKey(taxiPartyID)).Err(); err != nil {
		slog.Warn("current-settlement cache invalidation failed", "taxi_party_id", taxiPartyID, "error", err)
	}
}

func currentKey(taxiPartyID int64) string {
	return fmt.Sprintf("settlement:current:%d", taxiPartyID)
}

// RemindCooldownKey names the cooldown slot for a settlement.
func RemindCooldownKey(settlementID int64) string {
	return fmt.Sprintf("settlement:remind:%d", settlementID)
}
