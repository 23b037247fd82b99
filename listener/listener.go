// Package listener implements the loopback HTTP callback listener (spec
// component G): a hand-rolled HTTP/1.0 server, bound at construction, that
// exists solely to receive the authorization server's redirect and hand it
// back to the host as a CallbackEvent.
package listener

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oauthcore/oauthcore/internal/obs"
)

// Listener is a single loopback HTTP/1.0 server bound to a fixed
// (address, port) pair for the lifetime of the value. It is not reusable
// across independent authorization attempts sharing different ports; a
// host typically constructs one Listener per in-flight grant.
type Listener struct {
	ln       net.Listener
	endpoint string // "http://<loopback>:<port>/"
	port     int

	onCallback CallbackHandler
	onRequest  RequestHandler
	idleTimeout time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	group   *errgroup.Group
	cancel  context.CancelFunc
}

// Option configures a Listener at construction.
type Option func(*Listener)

// WithCallbackHandler registers the handler invoked once per /callback
// request, before the 301-to-/finished response is written.
func WithCallbackHandler(h CallbackHandler) Option {
	return func(l *Listener) { l.onCallback = h }
}

// WithRequestHandler registers the extension point from spec.md §4.G: it
// runs before built-in routing for every request and may fully handle any
// path by returning a non-nil *Response.
func WithRequestHandler(h RequestHandler) Option {
	return func(l *Listener) { l.onRequest = h }
}

// WithIdleTimeout bounds how long a per-connection worker will block on an
// idle or slow-to-complete socket read before the connection is abandoned.
// This is a supplemented Slowloris guard: spec.md §4.G's hand-rolled,
// byte-at-a-time reader has no such bound otherwise. Zero (the default)
// disables the deadline.
func WithIdleTimeout(d time.Duration) Option {
	return func(l *Listener) { l.idleTimeout = d }
}

// New binds a loopback TCP listener immediately on
// (loopbackAddress, port); port 0 asks the OS to assign one, recoverable
// afterward via Port. The listener does not begin accepting connections
// until Start.
func New(loopbackAddress string, port int, opts ...Option) (*Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", loopbackAddress, port))
	if err != nil {
		return nil, fmt.Errorf("oauthcore: binding loopback listener: %w", err)
	}
	actual := ln.Addr().(*net.TCPAddr).Port

	l := &Listener{
		ln:       ln,
		port:     actual,
		endpoint: fmt.Sprintf("http://%s:%d/", loopbackAddress, actual),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Port reports the bound local port (the OS-assigned value if the caller
// passed 0 to New).
func (l *Listener) Port() int { return l.port }

// Endpoint reports the absolute base URL the listener serves, e.g.
// "http://127.0.0.1:51234/".
func (l *Listener) Endpoint() string { return l.endpoint }

// CallbackURL reports the absolute URL the authorization server should
// redirect to, i.e. Endpoint + "callback".
func (l *Listener) CallbackURL() string { return l.endpoint + "callback" }

// Start begins the accept loop on a dedicated worker, per spec.md §5's
// scheduling model. Each accepted connection is handled on its own worker,
// both supervised by an errgroup.Group so Stop can deterministically await
// a clean drain. Start returns once the accept loop worker has been
// launched; it does not block for the life of the listener.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return fmt.Errorf("oauthcore: listener already started")
	}
	l.started = true
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	group, runCtx := errgroup.WithContext(runCtx)
	l.group = group
	l.mu.Unlock()

	group.Go(func() error {
		<-runCtx.Done()
		return l.ln.Close()
	})
	group.Go(func() error {
		return l.acceptLoop(group)
	})
	return nil
}

func (l *Listener) acceptLoop(group *errgroup.Group) error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			l.mu.Lock()
			stopped := l.stopped
			l.mu.Unlock()
			if stopped {
				return nil
			}
			return err
		}
		id := uuid.NewString()
		obs.Debugw("listener accepted connection", "connection_id", id, "remote", conn.RemoteAddr().String())
		group.Go(func() error {
			l.handleConnection(conn)
			return nil
		})
	}
}

// Stop terminates the accept loop by closing the bound socket and waits
// for in-flight connection workers to finish or time out against their own
// idle deadlines. Stop is idempotent. Dropping a Listener without calling
// Stop leaks its goroutines until the next Accept fails on its own.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	cancel := l.cancel
	group := l.group
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	} else {
		_ = l.ln.Close()
	}
	if group != nil {
		_ = group.Wait()
	}
	return nil
}
