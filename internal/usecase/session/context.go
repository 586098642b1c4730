package session

import (
	"sync"

	"parkwise/internal/domain/user"
)

// ViewClearer is the part of the reservation view the context resets on sign-out.
type ViewClearer interface {
	Clear()
}

// Context holds the identity a session acts for. Listeners run synchronously, in
// registration order, on the goroutine that changed the identity.
type Context struct {
	view ViewClearer

	mu        sync.RWMutex
	identity  user.Identity
	bound     bool
	nextID    int
	listeners []listener
}

type listener struct {
	id int
	fn func(user.Identity, bool)
}

func NewContext(view ViewClearer) *Context {
	return &Context{view: view}
}

func (c *Context) Identity() (user.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity, c.bound
}

// OnChange registers fn for every identity change and returns its unsubscribe func.
func (c *Context) OnChange(fn func(identity user.Identity, ok bool)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Bind sets identity and notifies listeners, also when it is the one already bound.
// Binding the anonymous identity is the same as Unbind.
func (c *Context) Bind(identity user.Identity) {
	if identity.IsAnonymous() {
		c.Unbind()
		return
	}
	c.mu.Lock()
	c.identity, c.bound = identity, true
	c.mu.Unlock()

	c.notify(identity, true)
}

// Unbind moves to "no identity" and empties the reservation view before listeners run.
func (c *Context) Unbind() {
	c.mu.Lock()
	c.identity, c.bound = user.Identity{}, false
	c.mu.Unlock()

	if c.view != nil {
		c.view.Clear()
	}
	c.notify(user.Identity{}, false)
}

func (c *Context) notify(identity user.Identity, ok bool) {
	c.mu.RLock()
	fns := make([]func(user.Identity, bool), 0, len(c.listeners))
	for _, l := range c.listeners {
		fns = append(fns, l.fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(identity, ok)
	}
}
