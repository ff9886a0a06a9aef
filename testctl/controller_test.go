package testctl

import (
	"errors"
	"testing"
	"time"

	"github.com/kennt/fixtest/fix"
)

type fakeTestCase struct {
	BaseTestCase
	runFn func() error
}

func (f *fakeTestCase) Clients() map[string]*ClientEndpoint { return nil }
func (f *fakeTestCase) Servers() map[string]*ServerEndpoint { return nil }
func (f *fakeTestCase) Run() error                          { return f.runFn() }

func TestControllerRunSucceeds(t *testing.T) {
	tc := &fakeTestCase{runFn: func() error { return nil }}
	c := NewController(tc)

	exitCode := c.Run(time.Second)

	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if c.TestStatus != "ok" {
		t.Errorf("expected status %q, got %q", "ok", c.TestStatus)
	}
}

func TestControllerClassifiesGenericError(t *testing.T) {
	tc := &fakeTestCase{runFn: func() error { return errors.New("boom") }}
	c := NewController(tc)

	exitCode := c.Run(time.Second)

	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if c.TestStatus != "fail: exception: boom" {
		t.Errorf("unexpected status: %q", c.TestStatus)
	}
}

func TestControllerClassifiesTimeoutError(t *testing.T) {
	tc := &fakeTestCase{runFn: func() error { return &fix.TimeoutError{Title: "no reply"} }}
	c := NewController(tc)

	c.Run(time.Second)

	want := "fail: timeout: timeout: no reply"
	if c.TestStatus != want {
		t.Errorf("got %q want %q", c.TestStatus, want)
	}
}

func TestControllerClassifiesInterruptedError(t *testing.T) {
	tc := &fakeTestCase{runFn: func() error { return &fix.InterruptedError{Msg: "cancelled"} }}
	c := NewController(tc)

	c.Run(time.Second)

	if c.TestStatus != "fail: test cancelled" {
		t.Errorf("got %q", c.TestStatus)
	}
}

func TestControllerRecoversAssertionFailurePanic(t *testing.T) {
	tc := &fakeTestCase{runFn: func() error {
		fail("tag 35: expected %q, got %q", "A", "0")
		return nil
	}}
	c := NewController(tc)

	exitCode := c.Run(time.Second)

	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if c.TestStatus != `fail: assert failed: tag 35: expected "A", got "0"` {
		t.Errorf("unexpected status: %q", c.TestStatus)
	}
}

func TestControllerRecoversGenericPanic(t *testing.T) {
	tc := &fakeTestCase{runFn: func() error {
		panic("unexpected nil pointer")
	}}
	c := NewController(tc)

	exitCode := c.Run(time.Second)

	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if c.TestStatus != "fail: exception: unexpected nil pointer" {
		t.Errorf("unexpected status: %q", c.TestStatus)
	}
}

func TestControllerCancelTestIsIdempotent(t *testing.T) {
	tc := &fakeTestCase{runFn: func() error { return nil }}
	c := NewController(tc)

	c.CancelTest()
	c.CancelTest() // must not panic

	if !c.isCancelled() {
		t.Errorf("expected controller to report cancelled")
	}
}

func TestControllerWaitForClientConnectionsHonorsCancellation(t *testing.T) {
	tc := &fakeTestCase{runFn: func() error { return nil }}
	c := NewController(tc)
	c.CancelTest()

	err := c.WaitForClientConnections(time.Second)
	if _, ok := err.(*fix.InterruptedError); !ok {
		t.Fatalf("expected *fix.InterruptedError, got %T (%v)", err, err)
	}
}

func TestControllerWaitForServerConnectionsReturnsImmediatelyWithNoServers(t *testing.T) {
	tc := &fakeTestCase{runFn: func() error { return nil }}
	c := NewController(tc)

	// No servers registered at all means Servers() is empty, so the
	// "all connected" vacuous truth should return immediately rather
	// than timing out.
	start := time.Now()
	err := c.WaitForServerConnections(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("expected no error for a test case with zero declared servers, got %v", err)
	}
	if time.Since(start) > 40*time.Millisecond {
		t.Errorf("expected an immediate return for zero declared servers")
	}
}
