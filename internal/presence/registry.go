// Package presence mantiene el registro en memoria de jugadores conectados.
package presence

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// PlayerView is the read-only projection of one tracked user.
type PlayerView struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	IsOnline    bool      `json:"isOnline"`
	Status      string    `json:"status,omitempty"`
	LastSeenUTC time.Time `json:"lastSeenUtc"`
}

// BroadcastFunc receives the post-mutation snapshot. It is called after all
// registry locks have been released; delivery is the gateway's problem.
type BroadcastFunc func([]PlayerView)

// entry holds the mutable state for one user. Fields are guarded by mu;
// map membership is guarded by the registry lock.
type entry struct {
	mu          sync.Mutex
	displayName string
	connIDs     map[string]struct{}
	status      string
	lastSeenUTC time.Time
}

// Registry tracks online/offline state for every user that has connected or
// set a status during process lifetime. Entries are never deleted: a user
// whose last connection drops stays in the map, offline, keeping status and
// last-seen history. Safe for concurrent use from transport and HTTP
// goroutines.
type Registry struct {
	mu        sync.RWMutex
	users     map[string]*entry
	conns     map[string]string // connectionID -> userID
	broadcast BroadcastFunc
	now       func() time.Time
}

// NewRegistry creates a registry. broadcast may be nil (no fan-out).
func NewRegistry(broadcast BroadcastFunc) *Registry {
	return &Registry{
		users:     make(map[string]*entry),
		conns:     make(map[string]string),
		broadcast: broadcast,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// getOrCreate returns the entry for userID, creating it lazily.
func (r *Registry) getOrCreate(userID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[userID]
	if !ok {
		e = &entry{connIDs: make(map[string]struct{})}
		r.users[userID] = e
	}
	return e
}

// Connect registers a transport connection for a user. An empty displayName
// keeps the previously known name. Re-adding a known connectionID is a no-op
// (set semantics). Broadcasts the post-mutation snapshot.
func (r *Registry) Connect(userID, connectionID, displayName string) []PlayerView {
	if userID == "" || connectionID == "" {
		return r.SnapshotAll()
	}

	e := r.getOrCreate(userID)

	r.mu.Lock()
	r.conns[connectionID] = userID
	r.mu.Unlock()

	e.mu.Lock()
	if displayName != "" {
		e.displayName = displayName
	}
	e.connIDs[connectionID] = struct{}{}
	e.lastSeenUTC = r.now().UTC()
	e.mu.Unlock()

	return r.publish()
}

// Disconnect removes a transport connection. Unknown connection ids are
// ignored silently: disconnect events can race, duplicate, or arrive after a
// restart. When the user's last connection goes away, lastSeen is bumped.
func (r *Registry) Disconnect(connectionID string) []PlayerView {
	r.mu.Lock()
	userID, ok := r.conns[connectionID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.conns, connectionID)
	e := r.users[userID]
	r.mu.Unlock()

	if e == nil {
		return nil
	}

	e.mu.Lock()
	delete(e.connIDs, connectionID)
	if len(e.connIDs) == 0 {
		e.lastSeenUTC = r.now().UTC()
	}
	e.mu.Unlock()

	return r.publish()
}

// SetStatus sets the user's free-text status. An empty status clears it.
// The status survives disconnects; only an explicit call changes it.
func (r *Registry) SetStatus(userID, status string) []PlayerView {
	if userID == "" {
		return r.SnapshotAll()
	}

	e := r.getOrCreate(userID)

	e.mu.Lock()
	e.status = status
	e.lastSeenUTC = r.now().UTC()
	e.mu.Unlock()

	return r.publish()
}

// IsOnline reports whether the user has at least one active connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	e := r.users[userID]
	r.mu.RUnlock()
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.connIDs) > 0
}

// ConnectionCount returns the number of active connections for a user.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	e := r.users[userID]
	r.mu.RUnlock()
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.connIDs)
}

// SnapshotAll returns a consistent view of every entry, online users first,
// each group ascending by display name (byte-wise comparison).
func (r *Registry) SnapshotAll() []PlayerView {
	r.mu.RLock()
	views := make([]PlayerView, 0, len(r.users))
	for userID, e := range r.users {
		e.mu.Lock()
		views = append(views, PlayerView{
			UserID:      userID,
			DisplayName: e.displayName,
			IsOnline:    len(e.connIDs) > 0,
			Status:      e.status,
			LastSeenUTC: e.lastSeenUTC,
		})
		e.mu.Unlock()
	}
	r.mu.RUnlock()

	sortViews(views)
	return views
}

// QueryPaged filters and pages the snapshot. eligibleUserIDs restricts the
// result to those ids when non-nil (role scoping is the caller's concern);
// search matches display names case-insensitively as a trimmed substring.
// total counts matches before pagination; a page past the end yields zero
// items with the correct total. page/pageSize <= 0 fall back to 1 and 10.
func (r *Registry) QueryPaged(eligibleUserIDs map[string]struct{}, page, pageSize int, search string) ([]PlayerView, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	all := r.SnapshotAll()

	q := strings.ToLower(strings.TrimSpace(search))
	filtered := all[:0:0]
	for _, v := range all {
		if eligibleUserIDs != nil {
			if _, ok := eligibleUserIDs[v.UserID]; !ok {
				continue
			}
		}
		if q != "" && !strings.Contains(strings.ToLower(v.DisplayName), q) {
			continue
		}
		filtered = append(filtered, v)
	}

	total := len(filtered)
	start := (page - 1) * pageSize
	if start >= total {
		return []PlayerView{}, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return filtered[start:end], total
}

// DefaultPageSize is used when the caller supplies a pageSize <= 0.
const DefaultPageSize = 10

// publish captures the snapshot and hands it to the broadcast hook.
// Runs with no locks held.
func (r *Registry) publish() []PlayerView {
	snapshot := r.SnapshotAll()
	if r.broadcast != nil {
		r.broadcast(snapshot)
	}
	return snapshot
}

func sortViews(views []PlayerView) {
	sort.Slice(views, func(i, j int) bool {
		if views[i].IsOnline != views[j].IsOnline {
			return views[i].IsOnline
		}
		if views[i].DisplayName != views[j].DisplayName {
			return views[i].DisplayName < views[j].DisplayName
		}
		return views[i].UserID < views[j].UserID
	})
}
