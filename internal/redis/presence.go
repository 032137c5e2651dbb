package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus is the mirrored view of a user's connection state.
type PresenceStatus struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
	ConnID   string    `json:"conn_id,omitempty"`
}

// PresenceEvent is published on channel:presence:{user_id} for every change.
type PresenceEvent struct {
	EventType  string `json:"event_type"`
	UserID     string `json:"user_id"`
	IsOnline   bool   `json:"is_online"`
	OccurredAt string `json:"occurred_at"`
}

// PresenceStore mirrors the in-process presence registry into Redis so other
// tooling can read who is online without reaching the coordinator.
type PresenceStore struct {
	client    *goredis.Client
	publisher *Publisher
	ttl       time.Duration
}

const (
	presenceKeyPrefix    = "presence:"
	presenceOnlineSet    = "presence:online"
	presenceHeartbeatKey = "presence:heartbeat"
)

func NewPresenceStore(client *goredis.Client, publisher *Publisher, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{
		client:    client,
		publisher: publisher,
		ttl:       ttl,
	}
}

func (p *PresenceStore) SetOnline(ctx context.Context, userID, connID string) error {
	now := time.Now().UTC()
	data, err := json.Marshal(PresenceStatus{UserID: userID, IsOnline: true, LastSeen: now, ConnID: connID})
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, userID)
	pipe.ZAdd(ctx, presenceHeartbeatKey, goredis.Z{Score: float64(now.Unix()), Member: userID})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return p.publish(ctx, userID, true, now)
}

// SetOffline keeps the offline record for a day so last_seen stays readable.
func (p *PresenceStore) SetOffline(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	data, err := json.Marshal(PresenceStatus{UserID: userID, IsOnline: false, LastSeen: now})
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, 24*time.Hour)
	pipe.SRem(ctx, presenceOnlineSet, userID)
	pipe.ZRem(ctx, presenceHeartbeatKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return p.publish(ctx, userID, false, now)
}

// Heartbeat refreshes the TTL of an online record.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID string) error {
	pipe := p.client.Pipeline()
	pipe.Expire(ctx, presenceKeyPrefix+userID, p.ttl)
	pipe.ZAdd(ctx, presenceHeartbeatKey, goredis.Z{Score: float64(time.Now().Unix()), Member: userID})
	_, err := pipe.Exec(ctx)
	return err
}

func (p *PresenceStore) GetPresence(ctx context.Context, userID string) (PresenceStatus, error) {
	data, err := p.client.Get(ctx, presenceKeyPrefix+userID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return PresenceStatus{UserID: userID}, nil
	}
	if err != nil {
		return PresenceStatus{}, err
	}

	var status PresenceStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return PresenceStatus{}, err
	}
	return status, nil
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID).Result()
}

func (p *PresenceStore) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, presenceOnlineSet).Result()
}

// CleanupStalePresence marks offline every user whose heartbeat is older
// than maxAge. Used after a crash left records behind.
func (p *PresenceStore) CleanupStalePresence(ctx context.Context, maxAge time.Duration) (int, error) {
	threshold := time.Now().Add(-maxAge).Unix()
	stale, err := p.client.ZRangeByScore(ctx, presenceHeartbeatKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(threshold, 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	for _, userID := range stale {
		if err := p.SetOffline(ctx, userID); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// Reset clears the online set. Called at startup because this process is the
// only writer and owns no connections yet.
func (p *PresenceStore) Reset(ctx context.Context) error {
	online, err := p.GetOnlineUsers(ctx)
	if err != nil {
		return err
	}
	for _, userID := range online {
		if err := p.SetOffline(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func (p *PresenceStore) publish(ctx context.Context, userID string, online bool, at time.Time) error {
	if p.publisher == nil {
		return nil
	}
	eventType := "presence.offline"
	if online {
		eventType = "presence.online"
	}
	return p.publisher.PublishJSON(ctx, ChannelPrefixPresence+userID, PresenceEvent{
		EventType:  eventType,
		UserID:     userID,
		IsOnline:   online,
		OccurredAt: at.Format(time.RFC3339),
	})
}
