package fix

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// TransportState is the lifecycle of a Transport's underlying connection.
type TransportState int

const (
	StateDisconnected TransportState = iota
	StateConnected
	StateClosed
)

// Transport is the per-connection glue between the Session engine, a
// MessageQueue, and a byte-oriented socket. It receives
// raw bytes and forwards them to the session; accepts a Message from
// user code and drives the session's prepare-encode-write path; and
// enqueues validated inbound messages for the test thread, always
// filtering Heartbeat/TestRequest at this layer regardless of the
// session's own FilterHeartbeat (which only controls the session's
// own forwarding, used for visibility in tests that want to see them).
type Transport struct {
	Name    string
	Session *Session
	Queue   *MessageQueue
	metrics *Metrics

	mu         sync.Mutex
	conn       net.Conn
	state      TransportState
	connected  bool
	err        error
	orderSeq   int
	heartbeat  *time.Ticker
	stopTicker chan struct{}
	cancelled  bool

	// sendMu serializes the whole prepare-encode-write sequence in
	// Send, so the heartbeat goroutine, the session's own
	// TestRequest-reply path, and application sends from the test
	// thread can never interleave and put a lower-seqno message on the
	// wire after a higher-seqno one.
	sendMu sync.Mutex
}

// NewTransport constructs a Transport wrapping session and queue.
// Session.OnMessage/OnError are wired here.
func NewTransport(name string, session *Session, queue *MessageQueue, metrics *Metrics) *Transport {
	t := &Transport{Name: name, Session: session, Queue: queue, metrics: metrics}
	session.OnMessage = t.deliver
	session.OnError = t.fail
	session.SetSender(t)
	return t
}

// Attach binds the live socket once a connection is established and
// starts the read loop. Transitions the transport to StateConnected.
func (t *Transport) Attach(conn net.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.state = StateConnected
	t.connected = true
	t.mu.Unlock()

	go t.readLoop(conn)
}

func (t *Transport) readLoop(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			t.Session.OnDataReceived(data)
		}
		if err != nil {
			t.mu.Lock()
			alreadyClosed := t.state == StateClosed
			t.state = StateClosed
			t.mu.Unlock()
			if !alreadyClosed {
				t.fail(&ConnectionError{Msg: "connection lost", Err: err})
			}
			return
		}
	}
}

// Send implements Sender: prepares (stamps seqno/time/version,
// validates required fields), encodes, and writes message to the
// socket. Both test-initiated sends and the session's own auto
// Heartbeat/TestRequest replies go through this single path.
func (t *Transport) Send(message *Message) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if err := t.Session.PrepareSend(message); err != nil {
		return err
	}
	encoded, err := Encode(message, t.Session.cfg.ProtocolVersion, nil)
	if err != nil {
		return err
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("fix: cannot send, no transport connected")
	}
	_, err = conn.Write(encoded)
	return err
}

// deliver is wired as Session.OnMessage: it applies the transport's
// own unconditional Heartbeat/TestRequest filter, then enqueues.
func (t *Transport) deliver(message *Message) {
	msgType := message.GetString(35)
	if msgType == MsgTypeHeartbeat || msgType == MsgTypeTestRequest {
		return
	}
	t.Queue.Add(message)
	t.metrics.setQueueDepth(t.Name, t.Queue.Len())
}

// fail records a fatal session/connection error and closes the socket.
func (t *Transport) fail(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	log.Printf("[fix] %s: fatal error: %v", t.Name, err)
	t.Close()
}

// Close closes the underlying socket (idempotent) and cancels the queue.
func (t *Transport) Close() {
	t.mu.Lock()
	conn := t.conn
	t.state = StateClosed
	t.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	t.Queue.Cancel()
}

// Cancel is the cancellation entry point invoked by the test
// controller's cancel_test(): it cancels the queue (unblocking any
// WaitForMessage with InterruptedError) and stops the heartbeat timer.
func (t *Transport) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
	t.StopHeartbeat()
	t.Queue.Cancel()
}

// Connected reports whether Attach has been called.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Err returns the last fatal error recorded against this transport, if any.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// NextOrderID returns a monotonically increasing order id of the form
// "<conn_name>/<YYYYMMDD>/<counter>".
func (t *Transport) NextOrderID() string {
	t.mu.Lock()
	t.orderSeq++
	seq := t.orderSeq
	t.mu.Unlock()
	return fmt.Sprintf("%s/%s/%d", t.Name, time.Now().UTC().Format("20060102"), seq)
}

// StartHeartbeat begins calling Session.OnTimerTick every interval on
// its own goroutine, closing the connection if the tick reports a
// TestRequest timeout.
func (t *Transport) StartHeartbeat(interval time.Duration) {
	t.mu.Lock()
	if t.heartbeat != nil {
		t.mu.Unlock()
		return
	}
	t.heartbeat = time.NewTicker(interval)
	t.stopTicker = make(chan struct{})
	ticker := t.heartbeat
	stop := t.stopTicker
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := t.Session.OnTimerTick(); err != nil {
					t.fail(err)
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// StopHeartbeat stops the heartbeat timer started by StartHeartbeat.
func (t *Transport) StopHeartbeat() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.heartbeat == nil {
		return
	}
	t.heartbeat.Stop()
	close(t.stopTicker)
	t.heartbeat = nil
}
