package verification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/storefront/internal/account/domain"
)

const (
	tokenKeyPrefix = "storefront:verify:token:"
	emailKeyPrefix = "storefront:verify:email:"
)

// RedisStore 基于 Redis 的验证码存储，过期由 key TTL 负责
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Create 使用 SET NX 占用验证码，并覆盖邮箱索引
func (s *RedisStore) Create(ctx context.Context, pending domain.PendingRegistration) (string, error) {
	data, err := json.Marshal(pending)
	if err != nil {
		return "", err
	}

	old, err := s.client.Get(ctx, emailKeyPrefix+pending.Email).Result()
	switch {
	case err == nil:
		_ = s.client.Del(ctx, tokenKeyPrefix+old).Err()
	case !errors.Is(err, redis.Nil):
		return "", err
	}

	for range maxCodeAttempts {
		code, err := domain.NewVerificationCode()
		if err != nil {
			return "", err
		}
		ok, err := s.client.SetNX(ctx, tokenKeyPrefix+code, data, s.ttl).Result()
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if err := s.client.Set(ctx, emailKeyPrefix+pending.Email, code, s.ttl).Err(); err != nil {
			return "", err
		}
		return code, nil
	}
	return "", errNoFreeCode
}

// Consume 使用 GETDEL 保证验证码只能被消费一次
func (s *RedisStore) Consume(ctx context.Context, token string) (*domain.PendingRegistration, error) {
	raw, err := s.client.GetDel(ctx, tokenKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p domain.PendingRegistration
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if current, err := s.client.Get(ctx, emailKeyPrefix+p.Email).Result(); err == nil && current == token {
		_ = s.client.Del(ctx, emailKeyPrefix+p.Email).Err()
	}
	return &p, nil
}

// FindByEmail 通过邮箱索引查找
func (s *RedisStore) FindByEmail(ctx context.Context, email string) (*domain.PendingRegistration, error) {
	token, err := s.client.Get(ctx, emailKeyPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, tokenKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p domain.PendingRegistration
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Close Redis 连接由调用方统一关闭
func (s *RedisStore) Close() error { return nil }
