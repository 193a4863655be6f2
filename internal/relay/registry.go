package relay

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avdeev/chatline/internal/core"
)

// Registry is the single source of truth for which users are online. It maps
// a user identity to its one live connection; a user opening a second
// connection replaces the first (last write wins). All operations are fast,
// in-memory and never perform I/O under the lock.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]core.SignalConn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]core.SignalConn)}
}

// Register binds identity to conn, replacing any previous connection for the
// same identity. The replaced connection is not closed here; its own read
// loop terminates and its teardown is ignored by the handle check in
// Unregister.
func (r *Registry) Register(identity string, conn core.SignalConn) {
	r.mu.Lock()
	r.conns[identity] = conn
	r.mu.Unlock()
	log.Info().Str("module", "relay.registry").Str("user", identity).Msg("registered")
}

// Unregister removes the mapping only if conn is still the stored handle, so
// a stale disconnect cannot evict a newer connection for the same identity.
// Returns whether the mapping was removed.
func (r *Registry) Unregister(identity string, conn core.SignalConn) bool {
	r.mu.Lock()
	cur, ok := r.conns[identity]
	if ok && cur == conn {
		delete(r.conns, identity)
		r.mu.Unlock()
		log.Info().Str("module", "relay.registry").Str("user", identity).Msg("unregistered")
		return true
	}
	r.mu.Unlock()
	return false
}

// Resolve looks up the live connection for identity. Absence means offline.
func (r *Registry) Resolve(identity string) (core.SignalConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[identity]
	return conn, ok
}

// Online returns the sorted set of online identities.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

type connSnap struct {
	identity string
	conn     core.SignalConn
}

func (r *Registry) snapshot() []connSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]connSnap, 0, len(r.conns))
	for id, c := range r.conns {
		out = append(out, connSnap{identity: id, conn: c})
	}
	return out
}
