package protocol

import "encoding/binary"

// FocusOp identifies the operation carried by a FocusPacket (§4.11).
type FocusOp uint8

const (
	FocusClaim FocusOp = iota + 1
	FocusRelease
	FocusGrant
	FocusDeny
	FocusHeartbeat
)

func (op FocusOp) String() string {
	switch op {
	case FocusClaim:
		return "Claim"
	case FocusRelease:
		return "Release"
	case FocusGrant:
		return "Grant"
	case FocusDeny:
		return "Deny"
	case FocusHeartbeat:
		return "Heartbeat"
	default:
		return "Unknown"
	}
}

// FocusPacket carries focus/feedback arbitration messages between clients
// and the focus controller.
type FocusPacket struct {
	Op           FocusOp
	ClientID     uint64
	LeaseUntilNS uint64
	Reason       string
}

// EncodeFocus serializes p and wraps it via Encode. Layout: op(1)
// clientID(8) leaseUntilNS(8) reasonLen(1) reason.
func EncodeFocus(p FocusPacket, frameFlags Flags) ([]byte, error) {
	reason := p.Reason
	if len(reason) > 255 {
		reason = reason[:255]
	}
	body := make([]byte, 0, 1+8+8+1+len(reason))
	body = append(body, uint8(p.Op))
	var buf8 [8]byte
	binary.BigEndian.PutUint64(buf8[:], p.ClientID)
	body = append(body, buf8[:]...)
	binary.BigEndian.PutUint64(buf8[:], p.LeaseUntilNS)
	body = append(body, buf8[:]...)
	body = append(body, uint8(len(reason)))
	body = append(body, reason...)
	return Encode(KindFocus, frameFlags, body)
}

// DecodeFocus parses a FocusPacket body.
func DecodeFocus(body []byte) (FocusPacket, error) {
	const fixedLen = 1 + 8 + 8 + 1
	if len(body) < fixedLen {
		return FocusPacket{}, parseErr(ErrTruncatedBody, "focus body needs %d bytes, have %d", fixedLen, len(body))
	}
	p := FocusPacket{
		Op:           FocusOp(body[0]),
		ClientID:     binary.BigEndian.Uint64(body[1:9]),
		LeaseUntilNS: binary.BigEndian.Uint64(body[9:17]),
	}
	reasonLen := int(body[17])
	rest := body[18:]
	if len(rest) < reasonLen {
		return FocusPacket{}, parseErr(ErrTruncatedBody, "focus reason needs %d bytes, have %d", reasonLen, len(rest))
	}
	p.Reason = string(rest[:reasonLen])
	return p, nil
}
