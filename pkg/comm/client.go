package comm

import "sync"

// Client serializes access to one Session so it can be shared between
// goroutines. Exchanges never overlap.
type Client struct {
	session *Session
	lock    sync.Mutex
}

// NewClient wraps a Session.
func NewClient(session *Session) *Client {
	return &Client{session: session}
}

// Do runs fn with exclusive access to the session.
func (c *Client) Do(fn func(*Session) error) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return fn(c.session)
}

// State returns the session state.
func (c *Client) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.session.State()
}

// Sync performs a handshake and, if keyed is set, a key exchange.
func (c *Client) Sync(keyed bool) error {
	return c.Do(func(s *Session) error {
		return resync(s, keyed)
	})
}

// Ensure re-synchronizes only when the session cannot access registers,
// or when a key is wanted but has not been negotiated. A session that
// faulted while keyed is always keyed again.
func (c *Client) Ensure(keyed bool) error {
	return c.Do(func(s *Session) error {
		keyed = keyed || s.KeyRequired()
		state := s.State()
		if state == StateKeyed || (state == StateSynchronized && !keyed) {
			return nil
		}
		if state == StateSynchronized {
			_, err := s.KeyExchange()
			return err
		}
		return resync(s, keyed)
	})
}

func resync(s *Session, keyed bool) error {
	if err := s.Handshake(); err != nil {
		return err
	}
	if keyed {
		_, err := s.KeyExchange()
		return err
	}
	return nil
}
