package fix

import (
	"bytes"
	"fmt"
	"strconv"
)

// SOH is the FIX field delimiter (0x01).
const SOH = 0x01

// framerTags are the tags whose position and content are controlled
// entirely by the encoder: BeginString, BodyLength, CheckSum.
var framerTags = map[int]bool{8: true, 9: true, 10: true}

// Checksum computes (start + sum of every byte in data) mod 256. This
// matches the encoder's definition exactly; the
// decoder's running tally must use the same definition so that
// well-formed messages round-trip.
func Checksum(data []byte, start int) int {
	sum := start
	for _, b := range data {
		sum += int(b)
	}
	return sum % 256
}

// EncodeOptions restricts which non-framer tags are emitted.
type EncodeOptions struct {
	// Include, if non-nil, limits output to only these tags.
	Include map[int]bool
	// Exclude, if non-nil, omits these tags even if present.
	Exclude map[int]bool
}

// Encode serializes message to its wire byte form, computing and
// stamping tag 9 (BodyLength) and tag 10 (CheckSum) on message as a
// side effect. protocolVersion is emitted verbatim as tag 8.
func Encode(message *Message, protocolVersion string, opts *EncodeOptions) ([]byte, error) {
	var body bytes.Buffer
	if err := encodeFields(&body, message, opts); err != nil {
		return nil, err
	}

	bodyLen := body.Len()

	var out bytes.Buffer
	writeField(&out, 8, []byte(protocolVersion))
	writeField(&out, 9, []byte(strconv.Itoa(bodyLen)))
	out.Write(body.Bytes())

	sum := Checksum(out.Bytes(), 0) % 256
	chk := fmt.Sprintf("%03d", sum)
	writeField(&out, 10, []byte(chk))

	_ = message.SetInt(9, bodyLen)
	_ = message.SetString(10, chk)

	return out.Bytes(), nil
}

func encodeFields(buf *bytes.Buffer, message *Message, opts *EncodeOptions) error {
	var encErr error
	message.Iterate(func(tag int, v Value) bool {
		if framerTags[tag] {
			return true
		}
		if opts != nil {
			if opts.Include != nil && !opts.Include[tag] {
				return true
			}
			if opts.Exclude != nil && opts.Exclude[tag] {
				return true
			}
		}
		if v.IsGroup() {
			writeField(buf, tag, []byte(strconv.Itoa(len(v.Groups()))))
			for _, sub := range v.Groups() {
				if err := encodeFields(buf, sub, nil); err != nil {
					encErr = err
					return false
				}
			}
			return true
		}
		writeField(buf, tag, v.Bytes())
		return true
	})
	return encErr
}

func writeField(buf *bytes.Buffer, tag int, value []byte) {
	buf.WriteString(strconv.Itoa(tag))
	buf.WriteByte('=')
	buf.Write(value)
	buf.WriteByte(SOH)
}
