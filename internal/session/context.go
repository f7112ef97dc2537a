package session

import (
	"sync"
	"time"
)

// Context holds the identity of the running session: whose markers are in
// scope and when the session began. Logging, storage scoping, and cloud sync
// all read from it.
type Context struct {
	mu        sync.RWMutex
	user      string
	startedAt time.Time
}

// NewContext creates a new Context for the given user, stamped with the
// current time.
func NewContext(user string) *Context {
	return &Context{
		user:      user,
		startedAt: time.Now(),
	}
}

// User returns the active user scope.
func (c *Context) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// SetUser switches the active user scope.
func (c *Context) SetUser(user string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
}

// StartedAt returns when the session began.
func (c *Context) StartedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startedAt
}
