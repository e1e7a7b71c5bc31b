package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const eventsKey = "audit:events"

// Store は監査イベントを Redis のリストに保存します。
// リストは maxEvents 件に切り詰められます（新しいものが先頭）。
type Store struct {
	rdb       *redis.Client
	maxEvents int64
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, maxEvents int64) *Store {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	return &Store{
		rdb:       rdb,
		maxEvents: maxEvents,
	}
}

// Append はイベントを保存します。
func (s *Store) Append(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, eventsKey, payload)
	pipe.LTrim(ctx, eventsKey, 0, s.maxEvents-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent は新しい順に最大 n 件のイベントを返します。
func (s *Store) Recent(ctx context.Context, n int64) ([]Event, error) {
	if n <= 0 {
		n = 100
	}
	values, err := s.rdb.LRange(ctx, eventsKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(values))
	for _, v := range values {
		var event Event
		if err := json.Unmarshal([]byte(v), &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
