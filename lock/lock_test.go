package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/breeding"
)

// =============================================================================
// LOCAL
// =============================================================================

func TestLocal_SameKeyBlocks(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "sow:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "sow:1")
	assert.ErrorIs(t, err, breeding.ErrLockTimeout)

	other, err := l.Lock(context.Background(), "sow:2")
	require.NoError(t, err, "different sows do not contend")
	other()

	unlock()
	again, err := l.Lock(context.Background(), "sow:1")
	require.NoError(t, err)
	again()
	assert.Equal(t, 0, l.held(), "idle keys are dropped")
}

func TestLocal_SerialisesHolders(t *testing.T) {
	l := NewLocal()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "sow:7")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLocal_UnlockTwiceIsSafe(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "sow:1")
	require.NoError(t, err)
	unlock()
	unlock()
	assert.Equal(t, 0, l.held())
}

// =============================================================================
// REDIS
// =============================================================================

func setupRedisLock(t *testing.T) (*miniredis.Miniredis, *Redis) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })
	return mr, NewRedis(client, RedisOptions{TTL: time.Second, Retry: 5 * time.Millisecond, Wait: 50 * time.Millisecond}, zap.NewNop())
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	mr, l := setupRedisLock(t)

	unlock, err := l.Lock(context.Background(), "sow:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("breeding:lock:sow:1"))

	_, err = l.Lock(context.Background(), "sow:1")
	assert.ErrorIs(t, err, breeding.ErrLockTimeout, "Wait bounds a context without deadline")

	unlock()
	assert.False(t, mr.Exists("breeding:lock:sow:1"))

	again, err := l.Lock(context.Background(), "sow:1")
	require.NoError(t, err)
	again()
}

func TestRedis_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	// GIVEN: A holder whose lease expired and was taken by another replica
	// WHEN: The first holder unlocks
	// THEN: The second holder's key survives

	mr, l := setupRedisLock(t)

	first, err := l.Lock(context.Background(), "sow:1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	second, err := l.Lock(context.Background(), "sow:1")
	require.NoError(t, err)

	first()
	assert.True(t, mr.Exists("breeding:lock:sow:1"))

	second()
	assert.False(t, mr.Exists("breeding:lock:sow:1"))
}
