package crmchat

import (
	"context"
	"errors"
	"sync"
)

// Rooms keeps at most one Client per room id.
type Rooms struct {
	cfg    Config
	logger Logger

	mu      sync.Mutex
	clients map[int64]*Client
	pending map[int64]chan struct{} // closed once the first Open of a room returns
}

// NewRooms creates an empty registry; every client it opens uses cfg.
func NewRooms(cfg Config) *Rooms {
	return &Rooms{
		cfg:     cfg,
		logger:  noopLogger{},
		clients: make(map[int64]*Client),
		pending: make(map[int64]chan struct{}),
	}
}

// SetLogger sets the logger handed to clients opened afterwards.
func (r *Rooms) SetLogger(l Logger) {
	if l == nil {
		return
	}
	r.mu.Lock()
	r.logger = l
	r.mu.Unlock()
}

// Open returns the client already registered for roomID, or registers a new
// one, runs setup on it (register callbacks there) and connects it. Concurrent
// Opens of the same room wait until the first one has run setup and connected.
//
// If Connect fails before dialing (token or config problem) the client is
// dropped and only the error is returned. If the dial itself fails the client
// stays registered, since it may be reconnecting, and is returned with the
// error.
func (r *Rooms) Open(ctx context.Context, roomID int64, setup func(*Client)) (*Client, error) {
	r.mu.Lock()
	for {
		ready, ok := r.pending[roomID]
		if !ok {
			break
		}
		r.mu.Unlock()
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		r.mu.Lock()
	}
	if c, ok := r.clients[roomID]; ok {
		r.mu.Unlock()
		return c, c.Connect(ctx)
	}
	c := NewClient(r.cfg, roomID)
	c.SetLogger(r.logger)
	ready := make(chan struct{})
	r.clients[roomID] = c
	r.pending[roomID] = ready
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, roomID)
		r.mu.Unlock()
		close(ready)
	}()

	if setup != nil {
		setup(c)
	}
	err := c.Connect(ctx)
	if err != nil && c.State() == StateError {
		r.remove(roomID, c)
		return nil, err
	}
	if !r.registered(roomID, c) {
		// Closed by Close or CloseAll while setup or the dial ran.
		_ = c.Disconnect()
		return nil, NewError(ErrorDisconnected, "room closed while opening")
	}
	return c, err
}

// Get returns the client registered for roomID. A client whose first Open
// is still running is not returned.
func (r *Rooms) Get(roomID int64) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[roomID]; ok {
		return nil, false
	}
	c, ok := r.clients[roomID]
	return c, ok
}

// Len returns the number of registered rooms.
func (r *Rooms) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close disconnects and unregisters the client for roomID. Unknown rooms are
// ignored.
func (r *Rooms) Close(roomID int64) error {
	r.mu.Lock()
	c, ok := r.clients[roomID]
	delete(r.clients, roomID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Disconnect()
}

// CloseAll disconnects every registered client.
func (r *Rooms) CloseAll() error {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[int64]*Client)
	r.mu.Unlock()

	var errs []error
	for _, c := range clients {
		if err := c.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Rooms) remove(roomID int64, c *Client) {
	r.mu.Lock()
	if r.clients[roomID] == c {
		delete(r.clients, roomID)
	}
	r.mu.Unlock()
}

func (r *Rooms) registered(roomID int64, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients[roomID] == c
}
