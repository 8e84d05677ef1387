package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"wdf-server/internal/platform/storage"
)

const activityKey = "sessions:activity"

func sessionKey(sessionID string) string { return "session:" + sessionID }
func userKey(userID string) string       { return "session:user:" + userID }
func versionKey(version int) string      { return fmt.Sprintf("sessions:version:%d", version) }

// RedisStore keeps each session as a JSON string under session:{id} with
// secondary indexes: session:user:{userId} holds the session id,
// sessions:version:{v} is the set of session ids per edition and
// sessions:activity is a sorted set scored by last update in milliseconds.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Create implements Store.Create.
func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(s.SessionID), b, 0)
		p.Set(ctx, userKey(s.UserID), s.SessionID, 0)
		p.SAdd(ctx, versionKey(s.Game.Version), s.SessionID)
		p.ZAdd(ctx, activityKey, redis.Z{Score: float64(s.UpdatedAt.UnixMilli()), Member: s.SessionID})
		return nil
	})
	return storage.Wrap("create session", s.SessionID, err)
}

// Get implements Store.Get.
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	s, err := r.load(ctx, id)
	if err != nil || s != nil {
		return s, storage.Wrap("get session", id, err)
	}

	sid, err := r.client.Get(ctx, userKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Wrap("get session", id, err)
	}
	s, err = r.load(ctx, sid)
	return s, storage.Wrap("get session", id, err)
}

// GetMany implements Store.GetMany. Results are ordered by session id.
func (r *RedisStore) GetMany(ctx context.Context, f Filter) ([]Session, error) {
	ids, err := r.candidates(ctx, f)
	if err != nil {
		return nil, storage.Wrap("get sessions", f, err)
	}
	all, err := r.loadMany(ctx, ids)
	if err != nil {
		return nil, storage.Wrap("get sessions", f, err)
	}

	out := all[:0]
	for _, s := range all {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out, nil
}

// Delete implements Store.Delete.
func (r *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	s, err := r.Get(ctx, id)
	if err != nil || s == nil {
		return false, err
	}
	if err := r.remove(ctx, *s); err != nil {
		return false, storage.Wrap("delete session", id, err)
	}
	return true, nil
}

// DeleteMany implements Store.DeleteMany.
func (r *RedisStore) DeleteMany(ctx context.Context, f Filter) (int, error) {
	sessions, err := r.GetMany(ctx, f)
	if err != nil {
		return 0, err
	}
	if err := r.remove(ctx, sessions...); err != nil {
		return 0, storage.Wrap("delete sessions", f, err)
	}
	return len(sessions), nil
}

// Ping implements Store.Ping.
func (r *RedisStore) Ping(ctx context.Context, version int, id string, at time.Time) (bool, error) {
	s, err := r.Get(ctx, id)
	if err != nil || s == nil || s.Game.Version != version {
		return false, err
	}
	s.UpdatedAt = at
	b, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("encode session: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(s.SessionID), b, 0)
		p.ZAdd(ctx, activityKey, redis.Z{Score: float64(at.UnixMilli()), Member: s.SessionID})
		return nil
	})
	if err != nil {
		return false, storage.Wrap("ping session", id, err)
	}
	return true, nil
}

// Count implements Store.Count.
func (r *RedisStore) Count(ctx context.Context, f Filter) (int, error) {
	if f.Version != 0 && f.versionOnly() {
		n, err := r.client.SCard(ctx, versionKey(f.Version)).Result()
		return int(n), storage.Wrap("count sessions", f, err)
	}
	sessions, err := r.GetMany(ctx, f)
	return len(sessions), err
}

// DeleteInactive implements Store.DeleteInactive.
func (r *RedisStore) DeleteInactive(ctx context.Context, before time.Time) (int, error) {
	ids, err := r.client.ZRangeByScore(ctx, activityKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, storage.Wrap("find inactive sessions", before.UTC().Format(time.RFC3339), err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	sessions, err := r.loadMany(ctx, ids)
	if err != nil {
		return 0, storage.Wrap("find inactive sessions", before.UTC().Format(time.RFC3339), err)
	}
	if err := r.remove(ctx, sessions...); err != nil {
		return 0, storage.Wrap("delete inactive sessions", before.UTC().Format(time.RFC3339), err)
	}
	// drop activity entries whose session value has already gone
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := r.client.ZRem(ctx, activityKey, members...).Err(); err != nil {
		return 0, storage.Wrap("delete inactive sessions", before.UTC().Format(time.RFC3339), err)
	}
	return len(sessions), nil
}

func (r *RedisStore) candidates(ctx context.Context, f Filter) ([]string, error) {
	switch {
	case len(f.SessionIDs) > 0:
		return f.SessionIDs, nil
	case f.Version != 0:
		return r.client.SMembers(ctx, versionKey(f.Version)).Result()
	default:
		return r.client.ZRange(ctx, activityKey, 0, -1).Result()
	}
}

func (r *RedisStore) load(ctx context.Context, sessionID string) (*Session, error) {
	b, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &s, nil
}

func (r *RedisStore) loadMany(ctx context.Context, ids []string) ([]Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Session, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var s Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", ids[i], err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *RedisStore) remove(ctx context.Context, sessions ...Session) error {
	if len(sessions) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, s := range sessions {
			p.Del(ctx, sessionKey(s.SessionID))
			p.SRem(ctx, versionKey(s.Game.Version), s.SessionID)
			p.ZRem(ctx, activityKey, s.SessionID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// the user index may already point at a newer session of the same user
	for _, s := range sessions {
		sid, err := r.client.Get(ctx, userKey(s.UserID)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return err
		}
		if sid == s.SessionID {
			if err := r.client.Del(ctx, userKey(s.UserID)).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
