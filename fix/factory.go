package fix

import (
	"net"
	"sync"
	"time"
)

// NewSessionFunc builds a fresh Session (and therefore fresh
// per-connection state) for each accepted/dialed connection.
type NewSessionFunc func(connName string) *Session

// Factory produces server-side Transports on accept and client-side
// Transports on dial. Servers accumulate every Transport
// they create so the test controller can WaitForServerConnections.
type Factory struct {
	Name       string
	newSession NewSessionFunc
	metrics    *Metrics

	mu        sync.Mutex
	listener  net.Listener
	servers   []*Transport
	cancelled bool
}

// NewFactory constructs a Factory that mints sessions via newSession.
func NewFactory(name string, newSession NewSessionFunc, metrics *Metrics) *Factory {
	return &Factory{Name: name, newSession: newSession, metrics: metrics}
}

// ListenAndServe binds addr and accepts connections in a background
// goroutine, wrapping each in a Transport and recording it in Servers.
// onAccept, if non-nil, is called with each new Transport (e.g. to
// record a "server_success" event for the controller).
func (f *Factory) ListenAndServe(addr string, onAccept func(*Transport)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &ConnectionError{Msg: "listen failed", Err: err}
	}
	f.mu.Lock()
	f.listener = ln
	f.mu.Unlock()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			connName := f.Name + "-" + conn.RemoteAddr().String()
			session := f.newSession(connName)
			queue := NewMessageQueue(connName)
			transport := NewTransport(connName, session, queue, f.metrics)
			transport.Attach(conn)

			f.mu.Lock()
			f.servers = append(f.servers, transport)
			f.mu.Unlock()

			if onAccept != nil {
				onAccept(transport)
			}
		}
	}()
	return nil
}

// Servers returns the Transports accepted so far.
func (f *Factory) Servers() []*Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Transport, len(f.servers))
	copy(out, f.servers)
	return out
}

// Cancel stops accepting new connections and cancels every accepted
// Transport's queue.
func (f *Factory) Cancel() {
	f.mu.Lock()
	f.cancelled = true
	ln := f.listener
	servers := append([]*Transport(nil), f.servers...)
	f.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, t := range servers {
		t.Cancel()
	}
}

// Dial establishes a client-side connection, wrapping it in a
// Transport. onConnect/onError, if non-nil, record the outcome (e.g.
// for the controller's "connected"/"error" poll).
func Dial(connName string, addr string, timeout time.Duration, session *Session, metrics *Metrics, onConnect func(*Transport), onError func(error)) *Transport {
	queue := NewMessageQueue(connName)
	transport := NewTransport(connName, session, queue, metrics)

	go func() {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			if onError != nil {
				onError(&ConnectionError{Msg: "dial failed", Err: err})
			}
			return
		}
		transport.Attach(conn)
		if onConnect != nil {
			onConnect(transport)
		}
	}()

	return transport
}
