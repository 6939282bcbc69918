package credential

import (
	"context"
	"strings"
	"time"

	"reelscribe/internal/logger"
	rds "reelscribe/internal/platform/redis"
)

const storageKey = "credential:transcribe"

// Redis persists the credential across restarts, the way the browser original
// kept it in local storage. Job state is deliberately never stored here.
type Redis struct {
	redis *rds.Service
	log   *logger.Logger
}

func NewRedis(redis *rds.Service) *Redis {
	return &Redis{redis: redis, log: logger.New("CredentialStore")}
}

func (r *Redis) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}

func (r *Redis) Has() bool {
	_, ok := r.Get()
	return ok
}

func (r *Redis) Get() (string, bool) {
	ctx, cancel := r.ctx()
	defer cancel()
	v, err := r.redis.Client().Get(ctx, storageKey).Result()
	if err != nil || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func (r *Redis) Set(value string) error {
	if !Validate(value) {
		return ErrInvalidFormat
	}
	ctx, cancel := r.ctx()
	defer cancel()
	return r.redis.Client().Set(ctx, storageKey, strings.TrimSpace(value), 0).Err()
}

func (r *Redis) Clear() {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.redis.Client().Del(ctx, storageKey).Err(); err != nil {
		r.log.LogWarnf("failed to clear stored credential: %v", err)
	}
}
