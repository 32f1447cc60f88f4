package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/binaahub/binna/internal/model"
)

const profileKeyPrefix = "binna:profile:"

// ProfileCache はユーザープロフィールのキャッシュ。
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*model.User, bool)
	Set(ctx context.Context, user *model.User)
	Delete(ctx context.Context, userID string)
}

// RedisProfileCache はRedisにプロフィールを保存するProfileCache。
// Redisの障害はキャッシュミスとして扱い、リクエストは失敗させない。
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProfileCache はRedisProfileCacheを生成する。
func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

type cachedProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	AccountType string    `json:"account_type"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Get はキャッシュからプロフィールを取得する。
func (c *RedisProfileCache) Get(ctx context.Context, userID string) (*model.User, bool) {
	b, err := c.client.Get(ctx, profileKeyPrefix+userID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("profile cache get failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
		return nil, false
	}

	var p cachedProfile
	if err := json.Unmarshal(b, &p); err != nil {
		slog.Warn("profile cache entry is corrupt", slog.String("user_id", userID), slog.String("error", err.Error()))
		return nil, false
	}
	t, ok := model.ParseAccountType(p.AccountType)
	if !ok {
		return nil, false
	}
	return &model.User{
		ID:          p.ID,
		Email:       p.Email,
		AccountType: t,
		Name:        p.Name,
		Phone:       p.Phone,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, true
}

// Set はプロフィールをTTL付きで保存する。
func (c *RedisProfileCache) Set(ctx context.Context, u *model.User) {
	b, err := json.Marshal(cachedProfile{
		ID:          u.ID,
		Email:       u.Email,
		AccountType: string(u.AccountType),
		Name:        u.Name,
		Phone:       u.Phone,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, profileKeyPrefix+u.ID, b, c.ttl).Err(); err != nil {
		slog.Warn("profile cache set failed", slog.String("user_id", u.ID), slog.String("error", err.Error()))
	}
}

// Delete はプロフィールのキャッシュを破棄する。
func (c *RedisProfileCache) Delete(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, profileKeyPrefix+userID).Err(); err != nil {
		slog.Warn("profile cache delete failed", slog.String("user_id", userID), slog.String("error", err.Error()))
	}
}

var _ ProfileCache = (*RedisProfileCache)(nil)
