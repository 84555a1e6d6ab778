// Package session multiplexes operator requests against one robot's
// duplex text-frame socket: exactly one request is in flight at a time,
// FIFO-ordered, since the wire protocol carries no request IDs.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"turtled/internal/turtleerr"
)

// Conn is the minimal duplex text-frame transport a Multiplexer drives.
// Only the Multiplexer's run loop calls ReadFrame and WriteFrame, so those
// two need not be safe for concurrent use; Close is called by
// Multiplexer.Close from any goroutine and may run while they are in
// progress.
type Conn interface {
	// ReadFrame blocks for up to timeout for the next frame. A timeout
	// elapsing is reported as turtleerr.ErrTimeOut; any other transport
	// failure (EOF, reset) is reported as turtleerr.ErrWsClosed.
	ReadFrame(timeout time.Duration) (string, error)
	WriteFrame(text string) error
	Close() error
}

// State is the Multiplexer's single-inflight request/response position.
type State int

const (
	Idle State = iota
	AwaitingReply
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingReply:
		return "awaiting_reply"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// queueDepth bounds how many requests may be enqueued but not yet
// dispatched to the wire before Submit reports back pressure.
const queueDepth = 64

// drainTimeout is how long the run loop waits to soak up a reply that
// arrived after its request already timed out, so the next request's
// read is not matched against a stale answer.
const drainTimeout = 2 * time.Second

type request struct {
	text    string
	timeout time.Duration
	reply   chan response
}

type response struct {
	text string
	err  error
}

// Multiplexer serializes requests against one robot's socket.
type Multiplexer struct {
	conn  Conn
	queue chan *request
	stop  chan struct{}
	done  chan struct{}

	closeOnce sync.Once

	mu    sync.Mutex
	state State
}

// New starts a Multiplexer's run loop over conn. The loop owns conn
// exclusively until Close or a transport error ends it.
func New(conn Conn) *Multiplexer {
	m := &Multiplexer{
		conn:  conn,
		queue: make(chan *request, queueDepth),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		state: Idle,
	}
	go m.run()
	return m
}

// Submit waits up to timeout to enqueue text (reporting ErrRequestSendError
// if the queue stays full), then blocks until a reply arrives, ctx is
// canceled, or the multiplexer closes; timeout also bounds the wait for
// the reply. Canceling ctx does not abort an exchange already dispatched
// to the wire: the run loop always finishes writing and reading it,
// discarding the reply, so the FIFO stream stays aligned for whatever is
// submitted next.
func (m *Multiplexer) Submit(ctx context.Context, text string, timeout time.Duration) (string, error) {
	req := &request{text: text, timeout: timeout, reply: make(chan response, 1)}

	enqueue := time.NewTimer(timeout)
	defer enqueue.Stop()
	select {
	case m.queue <- req:
	case <-enqueue.C:
		return "", turtleerr.ErrRequestSendError
	case <-ctx.Done():
		return "", ctx.Err()
	case <-m.done:
		return "", turtleerr.ErrWsClosed
	}

	select {
	case resp := <-req.reply:
		return resp.text, resp.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-m.done:
		return "", turtleerr.ErrWsClosed
	}
}

// Wait blocks until the multiplexer's run loop has exited.
func (m *Multiplexer) Wait() {
	<-m.done
}

// Close terminates the run loop and the underlying connection. Safe to
// call more than once.
func (m *Multiplexer) Close() error {
	m.closeOnce.Do(func() { close(m.stop) })
	return m.conn.Close()
}

// CurrentState reports the multiplexer's state machine position.
func (m *Multiplexer) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Multiplexer) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Multiplexer) run() {
	defer m.setState(Closed)
	defer close(m.done)

	for {
		select {
		case req := <-m.queue:
			if !m.exchange(req) {
				m.drainQueue(turtleerr.ErrWsClosed)
				return
			}
		case <-m.stop:
			m.drainQueue(turtleerr.ErrWsClosed)
			return
		}
	}
}

// exchange writes req and reads its reply, reporting false if the
// connection is now unusable.
func (m *Multiplexer) exchange(req *request) bool {
	m.setState(AwaitingReply)

	if err := m.conn.WriteFrame(req.text); err != nil {
		req.reply <- response{err: fmt.Errorf("%w: %v", turtleerr.ErrWsClosed, err)}
		return false
	}

	text, err := m.conn.ReadFrame(req.timeout)
	m.setState(Idle)
	req.reply <- response{text: text, err: err}

	switch {
	case err == nil:
		return true
	case errors.Is(err, turtleerr.ErrTimeOut):
		// The robot's answer may still be in flight; soak it up now so
		// it isn't mistaken for the reply to the next request.
		m.conn.ReadFrame(drainTimeout)
		return true
	default:
		return false
	}
}

func (m *Multiplexer) drainQueue(err error) {
	for {
		select {
		case req := <-m.queue:
			req.reply <- response{err: err}
		default:
			return
		}
	}
}

// Negotiate performs the identity handshake: ask the robot for its
// persisted label, adopt it if it parses as a UUID, or mint a new UUID
// v4 and assign it via setComputerLabel if the robot has none yet.
func Negotiate(ctx context.Context, m *Multiplexer) (uuid.UUID, error) {
	reply, err := m.Submit(ctx, "local ok, err = os.computerLabel() return ok", 5*time.Second)
	if err != nil {
		return uuid.UUID{}, err
	}

	if reply != "nil" {
		if id, perr := uuid.Parse(reply); perr == nil {
			return id, nil
		}
	}

	id := uuid.New()
	simple := strings.ReplaceAll(id.String(), "-", "")
	// The wire protocol gives no guarantee on what setComputerLabel's
	// return value serializes to; only a transport failure here aborts
	// negotiation. Once the command round-trips, the label is assumed
	// set and the freshly minted UUID is adopted regardless of reply text.
	if _, err := m.Submit(ctx, fmt.Sprintf("return os.setComputerLabel(%q)", simple), 5*time.Second); err != nil {
		return uuid.UUID{}, err
	}
	return id, nil
}
