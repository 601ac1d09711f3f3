package presence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectMultipleConnections(t *testing.T) {
	r := NewRegistry(nil)

	r.Connect("u1", "c1", "Alice")
	r.Connect("u1", "c2", "Alice")

	assert.True(t, r.IsOnline("u1"))
	assert.Equal(t, 2, r.ConnectionCount("u1"))

	r.Disconnect("c1")
	assert.True(t, r.IsOnline("u1"), "one connection left, still online")

	r.Disconnect("c2")
	assert.False(t, r.IsOnline("u1"))

	views := r.SnapshotAll()
	require.Len(t, views, 1, "entry persists after going offline")
	assert.False(t, views[0].IsOnline)
}

func TestDisconnectUpdatesLastSeen(t *testing.T) {
	r := NewRegistry(nil)
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return clock })

	r.Connect("u1", "c1", "Alice")
	r.Connect("u1", "c2", "Alice")

	clock = clock.Add(5 * time.Minute)
	r.Disconnect("c1")
	views := r.SnapshotAll()
	require.Len(t, views, 1)
	assert.Equal(t, clock.Add(-5*time.Minute), views[0].LastSeenUTC,
		"lastSeen untouched while still online")

	clock = clock.Add(5 * time.Minute)
	r.Disconnect("c2")
	views = r.SnapshotAll()
	assert.Equal(t, clock, views[0].LastSeenUTC,
		"lastSeen bumped when the last connection drops")
}

func TestDuplicateConnectIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)

	r.Connect("u1", "c1", "Alice")
	r.Connect("u1", "c1", "Alice")

	assert.Equal(t, 1, r.ConnectionCount("u1"))
}

func TestDuplicateDisconnectIsNoOp(t *testing.T) {
	var calls int
	r := NewRegistry(func([]PlayerView) { calls++ })

	r.Connect("u1", "c1", "Alice")
	r.Disconnect("c1")

	before := r.SnapshotAll()
	callsBefore := calls

	// Second disconnect for an already-removed connection: silent no-op.
	out := r.Disconnect("c1")
	assert.Nil(t, out)
	assert.Equal(t, callsBefore, calls, "no broadcast for unknown connection")
	assert.Equal(t, before, r.SnapshotAll())
}

func TestDisconnectUnknownConnection(t *testing.T) {
	r := NewRegistry(nil)
	assert.Nil(t, r.Disconnect("never-seen"))
	assert.Empty(t, r.SnapshotAll())
}

func TestEmptyDisplayNameKeepsPrevious(t *testing.T) {
	r := NewRegistry(nil)

	r.Connect("u1", "c1", "Alice")
	r.Connect("u1", "c2", "")

	views := r.SnapshotAll()
	require.Len(t, views, 1)
	assert.Equal(t, "Alice", views[0].DisplayName)
}

func TestStatusSurvivesDisconnect(t *testing.T) {
	r := NewRegistry(nil)

	r.Connect("u1", "c1", "Alice")
	r.SetStatus("u1", "afk")
	r.Disconnect("c1")

	views := r.SnapshotAll()
	require.Len(t, views, 1)
	assert.False(t, views[0].IsOnline)
	assert.Equal(t, "afk", views[0].Status)
}

func TestSetStatusCreatesEntry(t *testing.T) {
	r := NewRegistry(nil)

	r.SetStatus("ghost", "lurking")

	views := r.SnapshotAll()
	require.Len(t, views, 1)
	assert.Equal(t, "ghost", views[0].UserID)
	assert.False(t, views[0].IsOnline)
}

func TestSnapshotOrdering(t *testing.T) {
	r := NewRegistry(nil)

	r.Connect("a", "c1", "Zed")
	r.Connect("b", "c2", "Amy")
	r.Connect("c", "c3", "Bob")
	r.Disconnect("c3") // Bob goes offline

	views := r.SnapshotAll()
	require.Len(t, views, 3)

	names := []string{views[0].DisplayName, views[1].DisplayName, views[2].DisplayName}
	assert.Equal(t, []string{"Amy", "Zed", "Bob"}, names,
		"online group sorted by name, then offline group")
}

func TestQueryPagedPagination(t *testing.T) {
	r := NewRegistry(nil)
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("u%02d", i)
		r.Connect(id, "conn-"+id, fmt.Sprintf("Player %02d", i))
	}

	items, total := r.QueryPaged(nil, 3, 10, "")
	assert.Equal(t, 25, total)
	assert.Len(t, items, 5, "page 3 of 25 at size 10 holds items 21-25")

	items, total = r.QueryPaged(nil, 4, 10, "")
	assert.Equal(t, 25, total)
	assert.Empty(t, items, "page past the end is empty with correct total")
}

func TestQueryPagedCoercesBadInput(t *testing.T) {
	r := NewRegistry(nil)
	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("u%02d", i)
		r.Connect(id, "conn-"+id, id)
	}

	items, total := r.QueryPaged(nil, 0, -5, "")
	assert.Equal(t, 15, total)
	assert.Len(t, items, DefaultPageSize, "page<=0 -> 1, pageSize<=0 -> default")
}

func TestQueryPagedFiltering(t *testing.T) {
	r := NewRegistry(nil)
	r.Connect("u1", "c1", "Candice")
	r.Connect("u2", "c2", "Anton")
	r.Connect("u3", "c3", "Susan")
	r.Connect("u4", "c4", "Bob")

	eligible := map[string]struct{}{"u1": {}, "u3": {}}
	items, total := r.QueryPaged(eligible, 1, 10, "an")

	assert.Equal(t, 2, total)
	for _, v := range items {
		assert.Contains(t, []string{"u1", "u3"}, v.UserID)
	}
}

func TestQueryPagedSearchTrimsAndIgnoresCase(t *testing.T) {
	r := NewRegistry(nil)
	r.Connect("u1", "c1", "Alice")
	r.Connect("u2", "c2", "Bob")

	items, total := r.QueryPaged(nil, 1, 10, "  ALI  ")
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Alice", items[0].DisplayName)
}

func TestQueryPagedEmptyEligibleSet(t *testing.T) {
	r := NewRegistry(nil)
	r.Connect("u1", "c1", "Alice")

	items, total := r.QueryPaged(map[string]struct{}{}, 1, 10, "")
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestBroadcastAfterEveryMutation(t *testing.T) {
	var mu sync.Mutex
	var snapshots [][]PlayerView
	r := NewRegistry(func(s []PlayerView) {
		mu.Lock()
		snapshots = append(snapshots, s)
		mu.Unlock()
	})

	r.Connect("u1", "c1", "Alice")
	r.SetStatus("u1", "ready")
	r.Disconnect("c1")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots, 3)
	assert.True(t, snapshots[0][0].IsOnline)
	assert.Equal(t, "ready", snapshots[1][0].Status)
	assert.False(t, snapshots[2][0].IsOnline)
}

func TestConcurrentConnectDisconnect(t *testing.T) {
	r := NewRegistry(nil)

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				connID := fmt.Sprintf("w%d-c%d", w, i)
				r.Connect("shared", connID, "Shared")
				if i%2 == 0 {
					r.Disconnect(connID)
				}
			}
		}(w)
	}
	wg.Wait()

	// Every odd iteration leaves its connection open.
	want := workers * perWorker / 2
	assert.Equal(t, want, r.ConnectionCount("shared"),
		"set size equals net adds minus net removes")
	assert.True(t, r.IsOnline("shared"))
}

func TestConcurrentDistinctUsers(t *testing.T) {
	r := NewRegistry(nil)

	var wg sync.WaitGroup
	for u := 0; u < 20; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", u)
			for i := 0; i < 20; i++ {
				connID := fmt.Sprintf("%s-c%d", id, i)
				r.Connect(id, connID, id)
				r.SetStatus(id, "busy")
				r.Disconnect(connID)
			}
		}(u)
	}
	wg.Wait()

	views := r.SnapshotAll()
	assert.Len(t, views, 20)
	for _, v := range views {
		assert.False(t, v.IsOnline)
		assert.Equal(t, "busy", v.Status)
	}
}
