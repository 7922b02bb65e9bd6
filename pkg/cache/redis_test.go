package cache

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sims-api/pkg/config"
)

func TestNewRedisConnects(t *testing.T) {
	srv := miniredis.RunT(t)
	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)

	client, err := NewRedis(config.RedisConfig{Host: srv.Host(), Port: port, DB: 0, PoolSize: 4}, nil)
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck

	assert.Equal(t, 4, client.Options().PoolSize)
	assert.Equal(t, srv.Addr(), client.Options().Addr)
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)
	host := srv.Host()
	srv.Close()

	_, err = NewRedis(config.RedisConfig{Host: host, Port: port}, nil)
	assert.ErrorContains(t, err, "ping redis")
}
