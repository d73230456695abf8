package realtime

import "sync"

// Registry tracks which users currently hold a live connection. It is
// process-local and in-memory only: entries vanish on restart, which is
// acceptable because presence is best-effort. A user has at most one entry;
// a second connection for the same user overwrites the first's entry
// without closing the first socket.
type Registry struct {
	mu     sync.RWMutex
	online map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{online: make(map[string]*Client)}
}

// Set records the client as the user's current connection, evicting any
// previous entry.
func (r *Registry) Set(userID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[userID] = c
}

// Get returns the user's current connection, or false when offline.
func (r *Registry) Get(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.online[userID]
	return c, ok
}

// Remove drops the user's entry, but only if it still belongs to the given
// client. An evicted connection disconnecting later must not knock out the
// connection that replaced it.
func (r *Registry) Remove(userID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.online[userID]; ok && cur == c {
		delete(r.online, userID)
		return true
	}
	return false
}

// OnlineUserIDs lists every user with a live connection.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.online))
	for id := range r.online {
		ids = append(ids, id)
	}
	return ids
}

// Broadcast queues data on every online client's channel.
func (r *Registry) Broadcast(data []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.online {
		c.push(data)
	}
}

// Count returns the number of online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.online)
}
