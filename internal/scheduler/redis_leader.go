package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// LeaderKey — ключ Redis, которым владеет лидер диспетчера.
const LeaderKey = "collector:scheduler:leader"

// DefaultLeaderTTL — срок владения ключом без продления.
const DefaultLeaderTTL = 10 * time.Minute

// Продлевает ключ, только если он принадлежит этому экземпляру.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Удаляет ключ, только если он принадлежит этому экземпляру.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLeader — выбор лидера через ключ Redis с TTL.
//
// Используется вместо PgLeader, когда задан REDIS_URL. Ключ хранит
// токен экземпляра; каждый успешный TryLock продлевает TTL. Упавший
// лидер теряет ключ по истечении TTL.
type RedisLeader struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLeader создаёт RedisLeader. Пустой key и нулевой ttl
// заменяются значениями по умолчанию.
func NewRedisLeader(client redis.UniversalClient, key string, ttl time.Duration) *RedisLeader {
	if key == "" {
		key = LeaderKey
	}
	if ttl <= 0 {
		ttl = DefaultLeaderTTL
	}
	return &RedisLeader{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// TryLock продлевает собственный ключ или пытается захватить свободный.
func (l *RedisLeader) TryLock(ctx context.Context) (bool, error) {
	renewed, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("renew leader key: %w", err)
	}
	if renewed == 1 {
		return true, nil
	}

	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire leader key: %w", err)
	}
	return ok, nil
}

// Unlock освобождает ключ, если он ещё принадлежит экземпляру.
func (l *RedisLeader) Unlock(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release leader key: %w", err)
	}
	return nil
}

// OpenRedis разбирает url и проверяет соединение.
func OpenRedis(ctx context.Context, url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
