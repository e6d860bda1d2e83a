package hub

import (
	"context"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Disposable detaches one handler. Dispose is idempotent.
type Disposable interface {
	Dispose()
}

// Subscriber is the client side of the payment hub: one connection scoped to
// one credential, handlers registered per event name. There is no automatic
// reconnect; a credential change means Close and a fresh Dial.
type Subscriber struct {
	conn *websocket.Conn

	mu       sync.Mutex
	handlers map[string]map[int]func(StatusMessage)
	nextID   int

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the hub endpoint, passing the access token as a query
// parameter since browsers cannot set headers on websocket upgrades.
func Dial(ctx context.Context, rawURL, accessToken string) (*Subscriber, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("access_token", accessToken)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		conn:     conn,
		handlers: make(map[string]map[int]func(StatusMessage)),
		closed:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// On registers a handler for an event name and returns its disposable.
// Handlers disposed before a message is dispatched never see it.
func (s *Subscriber) On(event string, fn func(StatusMessage)) Disposable {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers[event] == nil {
		s.handlers[event] = make(map[int]func(StatusMessage))
	}
	id := s.nextID
	s.nextID++
	s.handlers[event][id] = fn
	return &disposable{sub: s, event: event, id: id}
}

// Close tears the connection down and stops the read loop. Safe to call more
// than once; returns after the read loop has exited, so no handler runs after
// Close returns.
func (s *Subscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	<-s.closed
	return err
}

// Closed is closed when the read loop exits, whether by Close or by the
// server going away.
func (s *Subscriber) Closed() <-chan struct{} { return s.closed }

func (s *Subscriber) readLoop() {
	defer close(s.closed)
	for {
		var msg StatusMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		s.dispatch(msg)
	}
}

func (s *Subscriber) dispatch(msg StatusMessage) {
	s.mu.Lock()
	fns := make([]func(StatusMessage), 0, len(s.handlers[msg.Event]))
	for _, fn := range s.handlers[msg.Event] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

type disposable struct {
	sub   *Subscriber
	event string
	id    int
	once  sync.Once
}

func (d *disposable) Dispose() {
	d.once.Do(func() {
		d.sub.mu.Lock()
		defer d.sub.mu.Unlock()
		delete(d.sub.handlers[d.event], d.id)
	})
}
