package reclaim

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"provisor/internal/schedule"
	id "provisor/pkg/domain"
)

const (
	// ZSET of item IDs scored by due time (unix millis).
	dueSetKey = "reclaim:due"
	// JSON payload per item.
	itemKeyPrefix = "reclaim:item:"
)

// RedisStore is the Redis-backed reclaim store. The production choice when
// multiple instances share the reclaim queue.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed reclaim store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// itemDoc is the stored JSON shape.
type itemDoc struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	IdentityID string    `json:"identity_id"`
	LicenseIDs []string  `json:"license_ids"`
	DueAt      time.Time `json:"due_at"`
	RequestID  string    `json:"request_id"`
}

// Schedule stages an item: the payload under its own key plus a ZSET member
// scored by due time, written in one transaction.
func (s *RedisStore) Schedule(ctx context.Context, item schedule.Item) error {
	payload, err := json.Marshal(itemDoc{
		ID:         item.ID.String(),
		EmployeeID: item.EmployeeID.String(),
		IdentityID: item.IdentityID,
		LicenseIDs: item.LicenseIDs,
		DueAt:      item.DueAt.UTC(),
		RequestID:  item.RequestID.String(),
	})
	if err != nil {
		return fmt.Errorf("encode reclaim item: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, itemKeyPrefix+item.ID.String(), payload, 0)
	pipe.ZAdd(ctx, dueSetKey, redis.Z{
		Score:  float64(item.DueAt.UnixMilli()),
		Member: item.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("schedule reclaim item: %w", err)
	}
	return nil
}

// Due returns up to limit items due at or before now, oldest first.
func (s *RedisStore) Due(ctx context.Context, now time.Time, limit int) ([]schedule.Item, error) {
	ids, err := s.client.ZRangeByScore(ctx, dueSetKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    strconv.FormatInt(now.UnixMilli(), 10),
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range due reclaim items: %w", err)
	}
	return s.loadItems(ctx, ids)
}

// Complete removes an item. Unknown IDs are ignored.
func (s *RedisStore) Complete(ctx context.Context, itemID id.ReclaimID) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, dueSetKey, itemID.String())
	pipe.Del(ctx, itemKeyPrefix+itemID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete reclaim item: %w", err)
	}
	return nil
}

// ListPending returns every scheduled item ordered by due time.
func (s *RedisStore) ListPending(ctx context.Context) ([]schedule.Item, error) {
	ids, err := s.client.ZRange(ctx, dueSetKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending reclaim items: %w", err)
	}
	return s.loadItems(ctx, ids)
}

func (s *RedisStore) loadItems(ctx context.Context, ids []string) ([]schedule.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, itemID := range ids {
		keys[i] = itemKeyPrefix + itemID
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load reclaim items: %w", err)
	}

	items := make([]schedule.Item, 0, len(vals))
	for i, val := range vals {
		raw, ok := val.(string)
		if !ok {
			// Payload vanished; drop the orphaned ZSET member.
			s.client.ZRem(ctx, dueSetKey, ids[i])
			continue
		}
		item, err := decodeItem([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode reclaim item %s: %w", ids[i], err)
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeItem(payload []byte) (schedule.Item, error) {
	var doc itemDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return schedule.Item{}, err
	}
	reclaimID, err := id.ParseReclaimID(doc.ID)
	if err != nil {
		return schedule.Item{}, err
	}
	requestID, err := id.ParseRequestID(doc.RequestID)
	if err != nil {
		return schedule.Item{}, err
	}
	return schedule.Item{
		ID:         reclaimID,
		EmployeeID: id.EmployeeID(doc.EmployeeID),
		IdentityID: doc.IdentityID,
		LicenseIDs: doc.LicenseIDs,
		DueAt:      doc.DueAt,
		RequestID:  requestID,
	}, nil
}
