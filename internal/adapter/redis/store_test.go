package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Port 1 on loopback is reserved and refuses connections.
	store, err := NewStore(ctx, "127.0.0.1:1", "", 0)
	require.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "connect to redis at 127.0.0.1:1")
}
