package redis

import (
	"context"
	"testing"
	"time"

	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
