// Package robotsocket accepts raw TCP connections from turtles and hands
// each one to a fresh Session Multiplexer, wiring its identity into the
// Robot Registry until that multiplexer stops. The multiplexer reads only
// while a request is in flight, so a turtle that disconnects while idle
// stays registered until the next exchange with it fails.
package robotsocket

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"turtled/internal/controller"
	"turtled/internal/registry"
	"turtled/internal/session"
	"turtled/internal/turtleerr"
	"turtled/internal/turtlestate"
)

// connAdapter wraps a net.Conn as a session.Conn: newline-delimited text
// frames, with read deadlines enforced per call.
type connAdapter struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func newConnAdapter(conn net.Conn) *connAdapter {
	return &connAdapter{conn: conn, scanner: bufio.NewScanner(conn)}
}

func (a *connAdapter) WriteFrame(text string) error {
	_, err := fmt.Fprintf(a.conn, "%s\n", text)
	if err != nil {
		return fmt.Errorf("%w: %v", turtleerr.ErrWsClosed, err)
	}
	return nil
}

func (a *connAdapter) ReadFrame(timeout time.Duration) (string, error) {
	if timeout > 0 {
		a.conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		a.conn.SetReadDeadline(time.Time{})
	}

	if !a.scanner.Scan() {
		if err := a.scanner.Err(); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// A Scanner stops for good after any error; start a fresh
				// one so the next ReadFrame reads from the connection again.
				a.scanner = bufio.NewScanner(a.conn)
				return "", turtleerr.ErrTimeOut
			}
			return "", fmt.Errorf("%w: %v", turtleerr.ErrWsClosed, err)
		}
		return "", turtleerr.ErrWsClosed
	}
	return a.scanner.Text(), nil
}

func (a *connAdapter) Close() error {
	return a.conn.Close()
}

// Listener accepts robot connections and registers each negotiated
// identity with reg, loading persisted state from dataDir.
type Listener struct {
	addr    string
	dataDir string
	reg     *registry.Registry
	log     *logrus.Entry
}

// New returns a Listener that will bind addr on Serve.
func New(addr, dataDir string, reg *registry.Registry, log *logrus.Entry) *Listener {
	return &Listener{addr: addr, dataDir: dataDir, reg: reg, log: log}
}

// Serve binds addr and accepts connections until ctx is canceled or the
// listener errors.
func (l *Listener) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("%w: binding robot socket: %v", turtleerr.ErrIO, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	l.log.WithField("addr", l.addr).Info("robot socket listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("%w: accepting robot connection: %v", turtleerr.ErrIO, err)
			}
		}
		go l.handle(ctx, conn)
	}
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) {
	adapter := newConnAdapter(conn)
	mux := session.New(adapter)

	id, err := session.Negotiate(ctx, mux)
	if err != nil {
		l.log.WithError(err).Warn("identity negotiation failed")
		mux.Close()
		return
	}
	log := l.log.WithField("robot_id", id.String())

	state, err := turtlestate.New(l.dataDir, id)
	if err != nil {
		log.WithError(err).Error("loading turtle state failed")
		mux.Close()
		return
	}

	entry := &registry.Entry{
		ID:         id,
		Controller: controller.New(state, mux),
		Mux:        mux,
	}
	if err := l.reg.Register(entry); err != nil {
		log.WithError(err).Warn("refusing duplicate session for identity")
		mux.Close()
		return
	}
	log.Info("robot session established")

	mux.Wait()
	l.reg.Unregister(id)
	log.Info("robot session closed")
}
