package convo

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Duhfx/LembrAI/internal/domain"
)

func TestGetOrCreateReturnsSameContext(t *testing.T) {
	store := NewMemoryStore(DefaultTimeout)

	first := store.GetOrCreate("123")
	first.DraftMessage = "pagar aluguel"

	second := store.GetOrCreate("123")
	assert.Equal(t, "pagar aluguel", second.DraftMessage)
	assert.Equal(t, domain.StateInitial, second.State)
}

func TestExpiredContextIsRecreated(t *testing.T) {
	store := NewMemoryStore(DefaultTimeout).(*memoryStore)

	current := time.Now()
	store.now = func() time.Time { return current }

	ctx := store.GetOrCreate("123")
	store.Update("123", func(c *domain.Context) {
		c.State = domain.StateConfirming
		c.DraftMessage = "dentista"
	})

	current = current.Add(DefaultTimeout + time.Second)

	fresh := store.GetOrCreate("123")
	assert.NotSame(t, ctx, fresh)
	assert.Equal(t, domain.StateInitial, fresh.State)
	assert.Empty(t, fresh.DraftMessage)
}

func TestUpdateTouchesTimestamp(t *testing.T) {
	store := NewMemoryStore(DefaultTimeout).(*memoryStore)

	current := time.Now()
	store.now = func() time.Time { return current }

	store.GetOrCreate("123")

	current = current.Add(DefaultTimeout - time.Second)
	store.Update("123", func(c *domain.Context) { c.DraftMessage = "x" })

	// Activity just before the deadline keeps the context alive past it.
	current = current.Add(DefaultTimeout - time.Second)
	ctx := store.GetOrCreate("123")
	assert.Equal(t, "x", ctx.DraftMessage)
}

func TestClear(t *testing.T) {
	store := NewMemoryStore(DefaultTimeout)

	store.Update("123", func(c *domain.Context) { c.DraftMessage = "x" })
	store.Clear("123")

	ctx := store.GetOrCreate("123")
	assert.Empty(t, ctx.DraftMessage)
}

func TestSweepExpired(t *testing.T) {
	store := NewMemoryStore(DefaultTimeout).(*memoryStore)

	current := time.Now()
	store.now = func() time.Time { return current }

	store.GetOrCreate("old")
	current = current.Add(5 * time.Minute)
	store.GetOrCreate("fresh")

	current = current.Add(6 * time.Minute)
	swept := store.SweepExpired()

	assert.Equal(t, 1, swept)
	assert.Contains(t, store.contexts, "fresh")
	assert.NotContains(t, store.contexts, "old")
}

func TestAcquireSerializesPerIdentity(t *testing.T) {
	store := NewMemoryStore(DefaultTimeout)

	var mu sync.Mutex
	var order []int
	turn := func(n int) {
		release := store.Acquire("123")
		defer release()
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			turn(n)
		}(i)
	}
	wg.Wait()

	// Turns never interleave: each pair of entries is the same goroutine.
	require.Len(t, order, 6)
	for i := 0; i < 6; i += 2 {
		assert.Equal(t, order[i], order[i+1])
	}
}

func TestAcquireDoesNotBlockOtherIdentities(t *testing.T) {
	store := NewMemoryStore(DefaultTimeout)

	releaseA := store.Acquire("a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := store.Acquire("b")
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("identity b blocked behind identity a")
	}
}

func TestSweepLeavesHeldLockAlone(t *testing.T) {
	store := NewMemoryStore(DefaultTimeout).(*memoryStore)

	current := time.Now()
	store.now = func() time.Time { return current }

	store.GetOrCreate("u1")
	release := store.Acquire("u1")

	// The context expires and is swept while the turn is still running.
	current = current.Add(DefaultTimeout + time.Second)
	store.SweepExpired()

	acquired := make(chan struct{})
	go func() {
		r2 := store.Acquire("u1")
		r2()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second turn acquired the identity lock while the first turn still held it")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock never handed over after release")
	}
}

func TestReleaseReclaimsLockEntry(t *testing.T) {
	store := NewMemoryStore(DefaultTimeout).(*memoryStore)

	for _, identity := range []string{"a", "b", "c"} {
		release := store.Acquire(identity)
		release()
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.locks, "one-shot identities must not leak lock entries")
}

func TestReleaseKeepsEntryWhileWaitersQueue(t *testing.T) {
	store := NewMemoryStore(DefaultTimeout).(*memoryStore)

	first := store.Acquire("u1")

	done := make(chan struct{})
	go func() {
		second := store.Acquire("u1")
		second()
		close(done)
	}()

	// Give the second turn time to queue on the same mutex.
	time.Sleep(20 * time.Millisecond)
	first()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued turn never ran")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.locks)
}

func TestPushTurnBoundsHistory(t *testing.T) {
	ctx := &domain.Context{}
	for i := 0; i < domain.MaxHistoryTurns+5; i++ {
		ctx.PushTurn("user", "msg")
	}
	assert.Len(t, ctx.History, domain.MaxHistoryTurns)
}
