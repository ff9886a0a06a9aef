package testctl

import (
	"fmt"

	"github.com/kennt/fixtest/fix"
)

// AssertionFailure is the typed failure a verify helper raises; the
// Controller classifies it as "fail: assert failed: ..." rather than a
// generic exception.
type AssertionFailure struct {
	Msg string
}

func (e *AssertionFailure) Error() string { return e.Msg }

func fail(format string, args ...interface{}) {
	panic(&AssertionFailure{Msg: fmt.Sprintf(format, args...)})
}

// VerifyTagValue asserts that message's tag equals want, panicking
// with an *AssertionFailure otherwise.
func VerifyTagValue(message *fix.Message, tag int, want string) {
	got, ok := message.Get(tag)
	if !ok {
		fail("tag %d: not present, expected %q", tag, want)
	}
	if got.String() != want {
		fail("tag %d: expected %q, got %q", tag, want, got.String())
	}
}

// VerifyPresent asserts that tag is present on message.
func VerifyPresent(message *fix.Message, tag int) {
	if !message.Contains(tag) {
		fail("tag %d: expected to be present", tag)
	}
}

// VerifyNotExists asserts that tag is NOT present on message. The tag
// must be genuinely absent; an empty value still fails.
func VerifyNotExists(message *fix.Message, tag int) {
	if message.Contains(tag) {
		fail("tag %d: expected to NOT be present", tag)
	}
}

// VerifyNoError asserts err is nil.
func VerifyNoError(err error) {
	if err != nil {
		fail("unexpected error: %v", err)
	}
}
