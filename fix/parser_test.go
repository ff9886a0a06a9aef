package fix

import (
	"strings"
	"testing"
)

type testReceiver struct {
	messages  []*Message
	lengths   []int
	checksums []int
	errors    []error
}

func (r *testReceiver) OnMessageReceived(message *Message, bodyLength, checksum int) {
	r.messages = append(r.messages, message)
	r.lengths = append(r.lengths, bodyLength)
	r.checksums = append(r.checksums, checksum)
}

func (r *testReceiver) OnErrorReceived(err error) {
	r.errors = append(r.errors, err)
}

// fixBytes replaces '|' with SOH, a convenience for writing test fixtures.
func fixBytes(s string) []byte {
	return []byte(strings.ReplaceAll(s, "|", "\x01"))
}

func TestParserSimpleMessageDecode(t *testing.T) {
	recv := &testReceiver{}
	p := NewParser(recv, ParserConfig{})

	data := fixBytes("8=FIX.4.2|9=65|35=A|49=SERVER|56=CLIENT|34=177|52=20090107-18:15:16|98=0|108=30|10=062|")
	p.OnDataReceived(data)

	if len(recv.errors) != 0 {
		t.Fatalf("unexpected errors: %v", recv.errors)
	}
	if len(recv.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(recv.messages))
	}
	msg := recv.messages[0]
	if msg.Len() != 10 {
		t.Errorf("expected 10 tags, got %d", msg.Len())
	}
	if recv.checksums[0] != 62 {
		t.Errorf("expected checksum tally 62, got %d", recv.checksums[0])
	}
}

func TestParserOneBytAtATime(t *testing.T) {
	recv := &testReceiver{}
	p := NewParser(recv, ParserConfig{})

	data := fixBytes("8=FIX.4.2|9=65|35=A|49=SERVER|56=CLIENT|34=177|52=20090107-18:15:16|98=0|108=30|10=062|")

	for i, b := range data {
		p.OnDataReceived([]byte{b})
		if i < len(data)-1 {
			if !p.IsParsing {
				t.Fatalf("byte %d: expected IsParsing true mid-message", i)
			}
		}
	}
	if p.IsParsing {
		t.Errorf("expected IsParsing false after final byte")
	}
	if len(recv.messages) != 1 {
		t.Fatalf("expected exactly 1 message emitted, got %d", len(recv.messages))
	}
}

func TestParserPartialBinaryField(t *testing.T) {
	recv := &testReceiver{}
	p := NewParser(recv, ParserConfig{BinaryFields: map[int]bool{99: true}})

	p.OnDataReceived(fixBytes("8=FIX.4.2|9=38|35=A|99=5|100=12"))
	if len(recv.messages) != 0 {
		t.Fatalf("message should not be complete yet")
	}
	p.OnDataReceived(fixBytes("345|919=this|955=that|10=198|"))

	if len(recv.errors) != 0 {
		t.Fatalf("unexpected errors: %v", recv.errors)
	}
	if len(recv.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(recv.messages))
	}
	if got := recv.messages[0].GetString(100); got != "12345" {
		t.Errorf("expected tag 100 = 12345, got %q", got)
	}
}

func TestParserNestedGroup(t *testing.T) {
	recv := &testReceiver{}
	p := NewParser(recv, ParserConfig{
		GroupFields: map[int]map[int]bool{
			100: {101: true, 102: true, 200: true},
			200: {201: true, 202: true},
		},
	})

	p.OnDataReceived(fixBytes("8=FIX.4.2|9=40|100=1|101=a|102=b|200=1|201=abc|202=def|10=087|"))

	if len(recv.errors) != 0 {
		t.Fatalf("unexpected errors: %v", recv.errors)
	}
	if len(recv.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(recv.messages))
	}
	v, ok := recv.messages[0].Get(100)
	if !ok || !v.IsGroup() || len(v.Groups()) != 1 {
		t.Fatalf("expected tag 100 to be a single-entry group, got %+v", v)
	}
	group := v.Groups()[0]
	if group.GetString(101) != "a" || group.GetString(102) != "b" {
		t.Errorf("group fields mismatch: %v", group)
	}
	nested, ok := group.Get(200)
	if !ok || !nested.IsGroup() || len(nested.Groups()) != 1 {
		t.Fatalf("expected nested tag 200 group, got %+v", nested)
	}
	innerGroup := nested.Groups()[0]
	if innerGroup.GetString(201) != "abc" || innerGroup.GetString(202) != "def" {
		t.Errorf("nested group fields mismatch: %v", innerGroup)
	}
}

func TestParserSiblingGroups(t *testing.T) {
	recv := &testReceiver{}
	p := NewParser(recv, ParserConfig{
		GroupFields: map[int]map[int]bool{
			100: {101: true, 102: true},
			200: {201: true},
		},
	})

	// Two independent repeating groups back-to-back: neither lead tag
	// is a member of the other's set, so group 200 must end up as its
	// own top-level entry, not nested inside group 100's last entry.
	p.OnDataReceived(fixBytes("8=FIX.4.2|9=30|100=1|101=a|102=b|200=1|201=x|10=170|"))

	if len(recv.errors) != 0 {
		t.Fatalf("unexpected errors: %v", recv.errors)
	}
	if len(recv.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(recv.messages))
	}
	message := recv.messages[0]

	v, ok := message.Get(100)
	if !ok || !v.IsGroup() || len(v.Groups()) != 1 {
		t.Fatalf("expected tag 100 to be a single-entry group, got %+v", v)
	}
	group := v.Groups()[0]
	if group.GetString(101) != "a" || group.GetString(102) != "b" {
		t.Errorf("group 100 fields mismatch: %v", group)
	}
	if group.Contains(200) {
		t.Errorf("group 200 must not be nested inside group 100's entry")
	}

	v, ok = message.Get(200)
	if !ok || !v.IsGroup() || len(v.Groups()) != 1 {
		t.Fatalf("expected tag 200 to be its own top-level group, got %+v", v)
	}
	if v.Groups()[0].GetString(201) != "x" {
		t.Errorf("group 200 fields mismatch: %v", v.Groups()[0])
	}
}

func TestParserMalformedTagIsError(t *testing.T) {
	recv := &testReceiver{}
	p := NewParser(recv, ParserConfig{})

	p.OnDataReceived(fixBytes("8=FIX.4.2|9=6|3X=A|10=000|"))

	if len(recv.errors) == 0 {
		t.Fatalf("expected a parse error for a non-numeric tag")
	}
	if _, ok := recv.errors[0].(*ParseError); !ok {
		t.Errorf("expected *ParseError, got %T", recv.errors[0])
	}
}

func TestParserUnexpectedTagEightMidMessage(t *testing.T) {
	recv := &testReceiver{}
	p := NewParser(recv, ParserConfig{})

	p.OnDataReceived(fixBytes("8=FIX.4.2|9=5|8=X|10=000|"))
	if len(recv.errors) == 0 {
		t.Fatalf("expected a parse error for repeated tag 8")
	}
}

func TestParserMustStartWithTagEight(t *testing.T) {
	recv := &testReceiver{}
	p := NewParser(recv, ParserConfig{})

	p.OnDataReceived(fixBytes("35=A|10=000|"))
	if len(recv.errors) == 0 {
		t.Fatalf("expected a parse error when message doesn't start with tag 8")
	}
}

func TestParserLengthExceeded(t *testing.T) {
	recv := &testReceiver{}
	p := NewParser(recv, ParserConfig{MaxLength: 20})

	p.OnDataReceived(fixBytes("8=FIX.4.2|9=999|35=A|49=SERVERSERVERSERVER|56=CLIENT|10=000|"))
	if len(recv.errors) == 0 {
		t.Fatalf("expected a length-exceeded error")
	}
	if _, ok := recv.errors[0].(*LengthExceededError); !ok {
		t.Errorf("expected *LengthExceededError, got %T", recv.errors[0])
	}
}
