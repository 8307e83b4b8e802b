// Package protocol implements MIDInet's wire codec: the fixed 8-byte frame
// header shared by every packet kind, the CRC16-CCITT trailer, and
// encode/decode for each kind-specific body (MidiDataPacket, HeartbeatPacket,
// IdentityPacket, FocusPacket). See spec §4.1.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/sigurn/crc16"
)

// Kind identifies a packet's body format. Values outside the known set are
// not a decode error — an unrecognized kind passes the codec so the wire
// format stays forward-compatible; callers drop it and bump a counter.
type Kind uint8

const (
	KindMidiData  Kind = 1
	KindHeartbeat Kind = 2
	KindIdentity  Kind = 3
	KindFocus     Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindMidiData:
		return "MidiData"
	case KindHeartbeat:
		return "Heartbeat"
	case KindIdentity:
		return "Identity"
	case KindFocus:
		return "Focus"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

const (
	magic0 = 'M'
	magic1 = 'N'

	// Version is the only wire version this codec emits. Decode tolerates
	// any version <= Version for the header shape but rejects newer ones.
	Version uint8 = 1

	// HeaderLen is the fixed header size: magic(2) version(1) kind(1) length(2) flags(2).
	HeaderLen = 8
	// TrailerLen is the CRC16 trailer appended after the body.
	TrailerLen = 2
	// MTULimit is the maximum total encoded frame size (header+body+trailer),
	// chosen to avoid IPv4 MTU fragmentation.
	MTULimit = 1200
	// MaxBodyLen is the largest body Encode will accept given the header/trailer overhead.
	MaxBodyLen = MTULimit - HeaderLen - TrailerLen
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Flags are frame-level bits independent of the body's own flags field.
type Flags uint16

const (
	// FlagTerminating marks the final heartbeat emitted during shutdown (§5).
	FlagTerminating Flags = 1 << 0
)

// ParseErrorKind classifies a decode failure. BadMagic, UnsupportedVersion,
// LengthMismatch, ChecksumMismatch, and TruncatedBody are returned by
// Decode. UnknownKind is never returned by Decode (an unknown kind decodes
// successfully) — it exists so dispatch layers can report "decoded fine,
// but nothing handles this kind" using the same error shape.
type ParseErrorKind uint8

const (
	ErrBadMagic ParseErrorKind = iota
	ErrUnsupportedVersion
	ErrLengthMismatch
	ErrChecksumMismatch
	ErrTruncatedBody
	ErrUnknownKind
)

func (k ParseErrorKind) String() string {
	switch k {
	case ErrBadMagic:
		return "BadMagic"
	case ErrUnsupportedVersion:
		return "UnsupportedVersion"
	case ErrLengthMismatch:
		return "LengthMismatch"
	case ErrChecksumMismatch:
		return "ChecksumMismatch"
	case ErrTruncatedBody:
		return "TruncatedBody"
	case ErrUnknownKind:
		return "UnknownKind"
	default:
		return "ParseError"
	}
}

// ParseError is returned by Decode on malformed input.
type ParseError struct {
	Kind ParseErrorKind
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("protocol: %s: %s", e.Kind, e.Msg)
}

func parseErr(kind ParseErrorKind, format string, args ...any) error {
	return &ParseError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// PayloadTooLarge is returned by Encode when the body would push the frame
// past MTULimit. Callers must split (e.g. SysEx fragmentation) and retry.
type PayloadTooLarge struct {
	BodyLen int
}

func (e *PayloadTooLarge) Error() string {
	return fmt.Sprintf("protocol: payload too large: body %d bytes exceeds max %d", e.BodyLen, MaxBodyLen)
}

// Frame is a decoded packet before its body is interpreted: the header
// fields plus the raw body bytes. Kind-specific Decode* functions consume
// Frame.Body.
type Frame struct {
	Version uint8
	Kind    Kind
	Flags   Flags
	Body    []byte
}

// Encode wraps body in the fixed header and a CRC16-CCITT trailer. It
// returns PayloadTooLarge if the resulting frame would exceed MTULimit.
func Encode(kind Kind, flags Flags, body []byte) ([]byte, error) {
	if len(body) > MaxBodyLen {
		return nil, &PayloadTooLarge{BodyLen: len(body)}
	}

	out := make([]byte, HeaderLen+len(body)+TrailerLen)
	out[0] = magic0
	out[1] = magic1
	out[2] = Version
	out[3] = uint8(kind)
	binary.BigEndian.PutUint16(out[4:6], uint16(len(body)))
	binary.BigEndian.PutUint16(out[6:8], uint16(flags))
	copy(out[HeaderLen:], body)

	crc := crc16.Checksum(out[:HeaderLen+len(body)], crcTable)
	binary.BigEndian.PutUint16(out[HeaderLen+len(body):], crc)

	return out, nil
}

// Decode validates the header, length, and checksum, and returns the frame.
// A decode succeeds for any structurally valid frame regardless of whether
// Kind is one this codec version recognizes — that dispatch decision is the
// caller's.
func Decode(data []byte) (Frame, error) {
	if len(data) < HeaderLen+TrailerLen {
		return Frame{}, parseErr(ErrTruncatedBody, "frame too short: %d bytes", len(data))
	}
	if data[0] != magic0 || data[1] != magic1 {
		return Frame{}, parseErr(ErrBadMagic, "got %02x%02x", data[0], data[1])
	}
	version := data[2]
	if version > Version {
		return Frame{}, parseErr(ErrUnsupportedVersion, "version %d newer than supported %d", version, Version)
	}
	kind := Kind(data[3])
	bodyLen := int(binary.BigEndian.Uint16(data[4:6]))
	flags := Flags(binary.BigEndian.Uint16(data[6:8]))

	wantTotal := HeaderLen + bodyLen + TrailerLen
	if len(data) != wantTotal {
		if len(data) < wantTotal {
			return Frame{}, parseErr(ErrTruncatedBody, "declared body %d bytes but frame has %d", bodyLen, len(data))
		}
		return Frame{}, parseErr(ErrLengthMismatch, "declared body %d bytes but frame has %d bytes of payload", bodyLen, len(data)-HeaderLen-TrailerLen)
	}

	body := data[HeaderLen : HeaderLen+bodyLen]
	gotCRC := binary.BigEndian.Uint16(data[HeaderLen+bodyLen:])
	wantCRC := crc16.Checksum(data[:HeaderLen+bodyLen], crcTable)
	if gotCRC != wantCRC {
		return Frame{}, parseErr(ErrChecksumMismatch, "got %04x want %04x", gotCRC, wantCRC)
	}

	return Frame{Version: version, Kind: kind, Flags: flags, Body: body}, nil
}
