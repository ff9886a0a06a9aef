package testctl

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kennt/fixtest/fix"
)

// ClientEndpoint describes a client connection the controller dials
// at test start, and tracks the outcome for WaitForClientConnections.
type ClientEndpoint struct {
	Name       string
	Host       string
	Port       int
	NewSession fix.NewSessionFunc
	Metrics    *fix.Metrics

	mu        sync.Mutex
	transport *fix.Transport
	connected bool
	err       error
}

// Transport returns the endpoint's Transport once dialing has started.
func (c *ClientEndpoint) Transport() *fix.Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

// ServerEndpoint describes a listening server the controller binds at
// test start, and tracks accepted connections for WaitForServerConnections.
type ServerEndpoint struct {
	Name       string
	Host       string
	Port       int
	NewSession fix.NewSessionFunc
	Metrics    *fix.Metrics

	mu      sync.Mutex
	factory *fix.Factory
	err     error
}

// Factory returns the endpoint's Factory once ListenAndServe has started.
func (s *ServerEndpoint) Factory() *fix.Factory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.factory
}

// TestCase is the user-supplied test body: it declares
// its server/client endpoints and the ordered pre_test/setup/run/teardown.
type TestCase interface {
	Clients() map[string]*ClientEndpoint
	Servers() map[string]*ServerEndpoint
	PreTest() bool
	Setup() error
	Run() error
	Teardown() error
}

// BaseTestCase supplies no-op PreTest/Setup/Teardown so concrete test
// cases only need to implement Clients/Servers/Run.
type BaseTestCase struct{}

func (BaseTestCase) PreTest() bool   { return true }
func (BaseTestCase) Setup() error    { return nil }
func (BaseTestCase) Teardown() error { return nil }

// Binder is satisfied by a TestCase that wants a reference back to
// its Controller, e.g. to call WaitForClientConnections/
// WaitForServerConnections from its own Setup. NewController wires
// the reference in automatically when the TestCase opts in.
type Binder interface {
	Bind(c *Controller)
}

// Controller runs a single TestCase: it binds servers, dials clients,
// runs the test body on its own goroutine, and coordinates
// cancellation and shutdown.
type Controller struct {
	TestCase TestCase

	TestStatus string
	ExitValue  int

	// MetricsAddr, if non-empty, binds an optional diagnostics HTTP
	// server exposing "/metrics" via promhttp for the duration of Run.
	// Left empty, no server is started.
	MetricsAddr string
	// Gatherer is the prometheus.Gatherer the diagnostics server reads
	// from. Nil selects the global default registry.
	Gatherer prometheus.Gatherer

	mu         sync.Mutex
	cancelled  bool
	done       chan struct{}
	diagServer *http.Server
}

// NewController constructs a Controller for tc, wiring itself back
// into tc if tc implements Binder.
func NewController(tc TestCase) *Controller {
	c := &Controller{TestCase: tc, TestStatus: "test: not-started", ExitValue: 1}
	if b, ok := tc.(Binder); ok {
		b.Bind(c)
	}
	return c
}

// CancelTest is the one-shot global cancel: it cancels every
// client/server transport and factory, unblocking any WaitForMessage
// call with InterruptedError. Idempotent.
func (c *Controller) CancelTest() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()

	for _, client := range c.TestCase.Clients() {
		if t := client.Transport(); t != nil {
			t.Cancel()
		}
	}
	for _, server := range c.TestCase.Servers() {
		if f := server.Factory(); f != nil {
			f.Cancel()
		}
	}
}

func (c *Controller) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// installSignalHandlers translates termination signals into
// CancelTest. Returns a stop function.
func (c *Controller) installSignalHandlers() func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			c.CancelTest()
		case <-done:
		}
	}()
	return func() {
		close(done)
		signal.Stop(sigCh)
	}
}

// Run binds every server, dials every client, runs the test body to
// completion (or cancellation), and returns the process exit code.
func (c *Controller) Run(dialTimeout time.Duration) int {
	stopSignals := c.installSignalHandlers()
	defer stopSignals()

	c.startDiagnostics()

	for name, server := range c.TestCase.Servers() {
		factory := fix.NewFactory(name, server.NewSession, server.Metrics)
		server.mu.Lock()
		server.factory = factory
		server.mu.Unlock()

		addr := fmt.Sprintf("%s:%d", server.Host, server.Port)
		if err := factory.ListenAndServe(addr, nil); err != nil {
			server.mu.Lock()
			server.err = err
			server.mu.Unlock()
		}
	}

	for name, client := range c.TestCase.Clients() {
		addr := fmt.Sprintf("%s:%d", client.Host, client.Port)
		session := client.NewSession(name)
		transport := fix.Dial(name, addr, dialTimeout, session, client.Metrics,
			func(t *fix.Transport) {
				client.mu.Lock()
				client.connected = true
				client.mu.Unlock()
			},
			func(err error) {
				client.mu.Lock()
				client.err = err
				client.mu.Unlock()
			})
		client.mu.Lock()
		client.transport = transport
		client.mu.Unlock()
	}

	c.done = make(chan struct{})
	go c.execute()
	<-c.done

	c.shutdown()
	c.stopDiagnostics()

	return c.ExitValue
}

// startDiagnostics binds MetricsAddr, if set, and serves "/metrics"
// in the background for the lifetime of the test run.
func (c *Controller) startDiagnostics() {
	if c.MetricsAddr == "" {
		return
	}
	handler := promhttp.Handler()
	if c.Gatherer != nil {
		handler = promhttp.HandlerFor(c.Gatherer, promhttp.HandlerOpts{})
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: c.MetricsAddr, Handler: mux}
	c.mu.Lock()
	c.diagServer = srv
	c.mu.Unlock()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[fixtest] diagnostics server failed: %v", err)
		}
	}()
}

func (c *Controller) stopDiagnostics() {
	c.mu.Lock()
	srv := c.diagServer
	c.mu.Unlock()
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// shutdown stops every server's listener and closes every transport
// once the test goroutine has completed, on the success path as well
// as after cancellation. Safe to call after CancelTest has already
// torn things down.
func (c *Controller) shutdown() {
	for _, server := range c.TestCase.Servers() {
		f := server.Factory()
		if f == nil {
			continue
		}
		f.Cancel()
		for _, t := range f.Servers() {
			t.Close()
		}
	}
	for _, client := range c.TestCase.Clients() {
		if t := client.Transport(); t != nil {
			t.Cancel()
			t.Close()
		}
	}
}

func (c *Controller) execute() {
	defer close(c.done)
	defer func() {
		if rec := recover(); rec != nil {
			switch v := rec.(type) {
			case *AssertionFailure:
				c.TestStatus = "fail: assert failed: " + v.Error()
			case error:
				c.TestStatus = "fail: exception: " + v.Error()
				log.Printf("fail: exception: %+v", v)
			default:
				c.TestStatus = fmt.Sprintf("fail: exception: %v", v)
			}
		}
	}()

	if !c.TestCase.PreTest() {
		c.TestStatus = "test: failed pre-test conditions"
		return
	}
	c.TestStatus = "test: in-progress"

	if err := c.TestCase.Setup(); err != nil {
		c.classify(err)
		return
	}
	if err := c.TestCase.Run(); err != nil {
		c.classify(err)
		return
	}
	if err := c.TestCase.Teardown(); err != nil {
		c.classify(err)
		return
	}

	c.TestStatus = "ok"
	c.ExitValue = 0
}

func (c *Controller) classify(err error) {
	switch e := err.(type) {
	case *AssertionFailure:
		c.TestStatus = "fail: assert failed: " + e.Error()
	case *fix.InterruptedError:
		c.TestStatus = "fail: test cancelled"
	case *fix.TimeoutError:
		c.TestStatus = "fail: timeout: " + e.Error()
	default:
		c.TestStatus = "fail: exception: " + err.Error()
		log.Printf("fail: exception: %+v", err)
	}
}

// WaitForClientConnections blocks until every client has connected,
// raising on the first recorded connection error, a timeout, or
// cancellation.
func (c *Controller) WaitForClientConnections(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if c.isCancelled() {
			return &fix.InterruptedError{Msg: "test cancelled"}
		}
		allConnected := true
		for _, client := range c.TestCase.Clients() {
			client.mu.Lock()
			err := client.err
			connected := client.connected
			client.mu.Unlock()
			if err != nil {
				return &fix.ConnectionError{Msg: "client connect failed", Err: err}
			}
			if !connected {
				allConnected = false
			}
		}
		if allConnected {
			return nil
		}
		if !time.Now().Before(deadline) {
			return &fix.TimeoutError{Title: "waiting for clients to connect"}
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// WaitForServerConnections blocks until every server has accepted at
// least one connection, raising on a recorded bind error, a timeout,
// or cancellation.
func (c *Controller) WaitForServerConnections(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if c.isCancelled() {
			return &fix.InterruptedError{Msg: "test cancelled"}
		}
		allConnected := true
		for _, server := range c.TestCase.Servers() {
			server.mu.Lock()
			err := server.err
			factory := server.factory
			server.mu.Unlock()
			if err != nil {
				return &fix.ConnectionError{Msg: "server bind failed", Err: err}
			}
			if factory == nil || len(factory.Servers()) == 0 {
				allConnected = false
			}
		}
		if allConnected {
			return nil
		}
		if !time.Now().Before(deadline) {
			return &fix.TimeoutError{Title: "waiting for servers to connect"}
		}
		time.Sleep(20 * time.Millisecond)
	}
}
