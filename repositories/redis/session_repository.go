// Package redis stores refresh-token sessions in Redis so they expire on their own.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/tenant-platform/config"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/repositories"
	"go.uber.org/zap"
)

const keyPrefix = "tenant-platform"

func sessionKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id.String())
}

func userSessionsKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:user_sessions:%s", keyPrefix, userID.String())
}

// NewClient creates a Redis client from configuration and checks connectivity
func NewClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*goredis.Client, error) {
	addr := cfg.Addr
	for _, scheme := range []string{"redis://", "rediss://"} {
		addr = strings.TrimPrefix(addr, scheme)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}

	logger.Info("redis connection established", zap.String("addr", addr), zap.Int("db", cfg.DB))
	return client, nil
}

// SessionRepository implements repositories.SessionRepository on Redis.
// Each session is a JSON value whose TTL matches the refresh token, and
// every user has a set of their session ids for bulk revocation.
type SessionRepository struct {
	client goredis.UniversalClient
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionRepository creates a new Redis session repository
func NewSessionRepository(client goredis.UniversalClient, logger *zap.Logger) repositories.SessionRepository {
	return &SessionRepository{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Create stores a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), data, ttl)
		pipe.SAdd(ctx, userSessionsKey(session.UserID), session.ID.String())
		pipe.Expire(ctx, userSessionsKey(session.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// GetByID retrieves a session
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// Revoke revokes one session, keeping it until its natural expiry
func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.revoke(ctx, id)
	return err
}

// revoke marks a session revoked and reports whether it was active
func (r *SessionRepository) revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	now := r.now().UTC()
	if !session.IsActive(now) {
		return false, nil
	}
	session.RevokedAt = &now

	data, err := json.Marshal(session)
	if err != nil {
		return false, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(id), data, goredis.KeepTTL).Err(); err != nil {
		return false, fmt.Errorf("failed to revoke session: %w", err)
	}
	return true, nil
}

// RevokeAllForUser revokes every session of a user and returns how many were active
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	members, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list user sessions: %w", err)
	}

	var revoked int64
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			r.logger.Warn("dropping malformed session id", zap.String("member", member))
			continue
		}
		active, err := r.revoke(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			continue
		}
		if err != nil {
			return revoked, err
		}
		if active {
			revoked++
		}
	}

	if err := r.client.Del(ctx, userSessionsKey(userID)).Err(); err != nil {
		return revoked, fmt.Errorf("failed to clear user sessions: %w", err)
	}

	r.logger.Debug("sessions revoked", zap.String("user_id", userID.String()), zap.Int64("count", revoked))
	return revoked, nil
}

// DeleteExpired is a no-op: Redis evicts sessions when their TTL runs out
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// ClientHealth adapts a Redis client to a readiness check
type ClientHealth struct {
	Client goredis.UniversalClient
}

// HealthCheck pings the server
func (h ClientHealth) HealthCheck(ctx context.Context) error {
	if err := h.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
