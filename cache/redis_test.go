package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_EmptyAddrDisablesCache(t *testing.T) {
	assert.Nil(t, New("", ""))
}

func TestNilRedis_AlwaysMisses(t *testing.T) {
	var r *Redis
	ctx := context.Background()

	r.Set(ctx, "k", []byte("v"), time.Minute)
	data, ok := r.Get(ctx, "k")
	r.Delete(ctx, "k")
	r.DeletePattern(ctx, "billing:milk:*")

	assert.False(t, ok)
	assert.Nil(t, data)
	assert.False(t, r.IsHealthy(ctx))
	assert.NoError(t, r.Close())
}
