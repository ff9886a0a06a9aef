package fix

import (
	"bytes"
	"strconv"
)

// Receiver is notified by a Parser as messages are decoded or
// malformed input is detected.
type Receiver interface {
	// OnMessageReceived is called once a full message (through tag 10)
	// has been assembled. bodyLength and checksum are the parser's own
	// tallies; it is the session engine's job to compare them against
	// the message's declared tag 9/10.
	OnMessageReceived(message *Message, bodyLength, checksum int)
	// OnErrorReceived is called when the byte stream could not be parsed.
	OnErrorReceived(err error)
}

// ParserConfig configures a Parser's framing rules.
type ParserConfig struct {
	// HeaderFields is an ordering hint only; it does not affect decoding.
	HeaderFields []int
	// BinaryFields is the set of length-prefix tags L whose companion
	// tag L+1 carries a raw, possibly-binary payload of exactly the
	// declared length.
	BinaryFields map[int]bool
	// GroupFields maps a group-lead tag to the set of member tags
	// valid at that nesting level.
	GroupFields map[int]map[int]bool
	// MaxLength is the maximum running body length (and the maximum
	// declared binary field length); 0 selects the default of 2048.
	MaxLength int
	Debug     bool
}

type level struct {
	tag     int
	list    []*Message
	current *Message
}

// Parser is a byte-stream state machine that decodes FIX messages fed
// to it in arbitrarily sized chunks, including a single byte at a
// time, reporting assembled messages and errors to a Receiver.
type Parser struct {
	receiver Receiver
	cfg      ParserConfig

	buffer []byte

	// IsParsing is true while a partial message is held: from the first
	// buffered byte of a message until its terminating tag 10.
	IsParsing bool
	// IsReceivingData is a reentrancy guard: true while OnDataReceived
	// is draining the buffer, so a nested call just appends and returns.
	IsReceivingData bool

	message       *Message
	inMessage     bool // a leading tag 8 has been consumed, tag 10 not yet
	checksumTally int
	lengthTally   int

	// binary field tracking
	pendingBinaryTag    int // expected tag of the upcoming payload field (L+1), 0 if none pending
	pendingBinaryFieldN int // expected total byte length of that field (tag prefix + '=' + payload)

	levels []*level
}

// NewParser constructs a Parser bound to receiver.
func NewParser(receiver Receiver, cfg ParserConfig) *Parser {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 2048
	}
	if cfg.HeaderFields == nil {
		cfg.HeaderFields = DefaultHeaderFields
	}
	p := &Parser{receiver: receiver, cfg: cfg}
	p.resetState()
	return p
}

func (p *Parser) resetState() {
	p.IsParsing = false
	p.inMessage = false
	p.message = NewMessage(WithHeaderFields(p.cfg.HeaderFields))
	p.checksumTally = 0
	p.lengthTally = 0
	p.pendingBinaryTag = 0
	p.pendingBinaryFieldN = 0
	p.levels = nil
}

// Reset discards any partial message. When flushBuffer is true, the
// unconsumed byte buffer is also dropped (the error path).
func (p *Parser) Reset(flushBuffer bool) {
	p.resetState()
	if flushBuffer {
		p.buffer = nil
	}
}

// OnDataReceived feeds data into the parser. Safe to call with
// arbitrary chunk sizes, including one byte.
func (p *Parser) OnDataReceived(data []byte) {
	if p.IsReceivingData {
		p.buffer = append(p.buffer, data...)
		return
	}

	p.IsReceivingData = true
	p.buffer = append(p.buffer, data...)
	defer func() {
		p.IsReceivingData = false
		p.IsParsing = p.inMessage || len(p.buffer) > 0
	}()

	for {
		searchStart := 0
		if p.pendingBinaryTag != 0 {
			searchStart = p.pendingBinaryFieldN
		}
		if len(p.buffer) < searchStart {
			return
		}
		idx := bytes.IndexByte(p.buffer[searchStart:], SOH)
		if idx == -1 {
			return
		}
		idx += searchStart

		field := p.buffer[:idx]
		p.buffer = p.buffer[idx+1:]

		if err := p.consumeField(field); err != nil {
			p.Reset(true)
			p.receiver.OnErrorReceived(err)
			return
		}
	}
}

func (p *Parser) consumeField(field []byte) error {
	tagID, value, err := parseField(field)
	if err != nil {
		return err
	}

	if tagID == 8 {
		if p.inMessage {
			return newParseError("unexpected tag: 8")
		}
		p.inMessage = true
	} else if !p.inMessage {
		return newParseError("message must start with tag 8")
	}

	if err := p.updateLength(field, tagID); err != nil {
		return err
	}
	p.updateChecksum(field, tagID)

	if err := p.updateBinary(field, tagID, value); err != nil {
		return err
	}

	p.updateField(tagID, StringValue(value))

	if tagID == 10 {
		msg, bodyLen, chk := p.message, p.lengthTally, p.checksumTally
		p.Reset(false)
		p.receiver.OnMessageReceived(msg, bodyLen, chk)
	}
	return nil
}

func parseField(field []byte) (tag int, value string, err error) {
	delim := bytes.IndexByte(field, '=')
	if delim == -1 {
		return 0, "", newParseError(`incorrect format: missing "="`)
	}
	rawTag := field[:delim]
	if len(rawTag) == 0 {
		return 0, "", newParseError("incorrect format: empty tag")
	}
	for _, b := range rawTag {
		if b < '0' || b > '9' {
			return 0, "", newParseError("incorrect format: id:%s", rawTag)
		}
	}
	tagID, convErr := strconv.Atoi(string(rawTag))
	if convErr != nil {
		return 0, "", newParseError("incorrect format: id:%s", rawTag)
	}
	return tagID, string(field[delim+1:]), nil
}

func (p *Parser) updateLength(field []byte, tagID int) error {
	if tagID != 8 && tagID != 9 && tagID != 10 {
		p.lengthTally += len(field) + 1
	}
	if p.lengthTally > p.cfg.MaxLength {
		return newLengthExceededError("message too long: %d", p.lengthTally)
	}
	return nil
}

func (p *Parser) updateChecksum(field []byte, tagID int) {
	if tagID != 10 {
		p.checksumTally = Checksum(field, p.checksumTally)
		p.checksumTally = Checksum([]byte{SOH}, p.checksumTally)
	}
}

func (p *Parser) updateBinary(field []byte, tagID int, value string) error {
	if p.pendingBinaryTag == 0 {
		if p.cfg.BinaryFields[tagID] {
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return newParseError("invalid binary length for tag %d: %q", tagID, value)
			}
			expectTag := tagID + 1
			fieldLen := len(strconv.Itoa(expectTag)) + 1 + n
			if n > p.cfg.MaxLength {
				return newLengthExceededError("binary field too long: %d ref:%d", n, tagID)
			}
			p.pendingBinaryTag = expectTag
			p.pendingBinaryFieldN = fieldLen
		}
		return nil
	}

	if tagID != p.pendingBinaryTag {
		return newParseError("expected binary tag %d found %d", p.pendingBinaryTag, tagID)
	}
	if len(field) != p.pendingBinaryFieldN {
		return newParseError("binary length: expected %d found %d", p.pendingBinaryFieldN, len(field))
	}
	p.pendingBinaryTag = 0
	p.pendingBinaryFieldN = 0
	return nil
}

// updateField routes tagID/value into the right container, pushing,
// extending, or popping repeating-group levels as needed. The tag is
// first matched against the active level: any level whose member set
// does not contain it is popped (its assembled list attached to the
// parent's current group, or the top-level message). Only once a
// context that accepts the tag has been found does a group-lead tag
// push a new level; this keeps a sibling group from being swallowed
// into the previous group's last entry.
func (p *Parser) updateField(tagID int, v Value) {
	for len(p.levels) > 0 && !p.cfg.GroupFields[p.levels[len(p.levels)-1].tag][tagID] {
		p.popLevel()
	}

	if _, isGroupLead := p.cfg.GroupFields[tagID]; isGroupLead {
		p.levels = append(p.levels, &level{tag: tagID})
		return
	}

	if len(p.levels) == 0 {
		_ = p.message.Set(tagID, v)
		return
	}

	top := p.levels[len(p.levels)-1]
	if top.current == nil || top.current.Contains(tagID) {
		top.current = NewMessage(WithHeaderFields(nil))
		top.list = append(top.list, top.current)
	}
	_ = top.current.Set(tagID, v)
}

// popLevel detaches the top level and attaches its assembled list to
// the parent level's current group, or to the top-level message when
// no parent remains.
func (p *Parser) popLevel() {
	cur := p.levels[len(p.levels)-1]
	p.levels = p.levels[:len(p.levels)-1]

	if len(p.levels) == 0 {
		_ = p.message.Set(cur.tag, GroupValue(cur.list))
		return
	}
	parent := p.levels[len(p.levels)-1]
	if parent.current == nil {
		parent.current = NewMessage(WithHeaderFields(nil))
		parent.list = append(parent.list, parent.current)
	}
	_ = parent.current.Set(cur.tag, GroupValue(cur.list))
}
