package redis_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform/redis"
)

func TestConnect_Validation(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), redis.Config{})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)

	_, err = redis.Connect(context.Background(), redis.Config{URL: "http://localhost:6379"})
	assert.Error(t, err)
}

// TestChannel_Integration needs a live server: REDIS_URL=redis://localhost:6379/0.
func TestChannel_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.Connect(ctx, redis.Config{URL: url, RetryAttempts: 3, RetryInterval: 100 * time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	ch := redis.New(client, redis.WithPrefix("broadcastevent-test:"+t.Name()+":"))
	defer ch.Close()
	require.NoError(t, ch.Ping(ctx))

	// Emit right after Arm returns, on fresh channels, so a subscription that
	// is not yet active on the server would lose the payload.
	for i := 0; i < 20; i++ {
		got := make(chan *payload.Payload, 1)
		f := payload.NewFilter(fmt.Sprintf("com.x.SCAN%d", i), "")
		id := fmt.Sprintf("r%d", i)
		require.NoError(t, ch.Arm(ctx, id, f, func(p *payload.Payload) { got <- p }))
		require.NoError(t, ch.Emit(ctx, payload.New(f.Name, "", "CODE", "42")))
		select {
		case p := <-got:
			assert.Equal(t, "42", p.Fields["CODE"])
		case <-ctx.Done():
			t.Fatalf("payload %d never arrived", i)
		}
		if i > 0 {
			require.NoError(t, ch.Disarm(ctx, id))
		}
	}

	require.NoError(t, ch.Disarm(ctx, "r0"))
	assert.ErrorIs(t, ch.Disarm(ctx, "r0"), platform.ErrNotArmed)
}
