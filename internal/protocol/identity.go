package protocol

import "encoding/binary"

// IdentityPacket describes the physical MIDI device a host is bridging, so
// clients can clone it byte-for-byte when materializing a virtual device
// (§4.10). Broadcast on the control group every 5s and on new-client join.
type IdentityPacket struct {
	HostID           uint16
	DeviceManufacturer string
	DeviceName       string
	DeviceModel      string
	VendorID         uint16
	ProductID        uint16
	UniqueID         uint32
	PortCountIn      uint8
	PortCountOut     uint8
	Capabilities     uint16
}

func putString(dst []byte, s string) []byte {
	// truncated to fit a 1-byte length prefix; platform identity strings
	// are already far shorter than 255 bytes.
	if len(s) > 255 {
		s = s[:255]
	}
	dst = append(dst, uint8(len(s)))
	dst = append(dst, s...)
	return dst
}

func getString(data []byte) (string, []byte, error) {
	if len(data) < 1 {
		return "", nil, parseErr(ErrTruncatedBody, "string length prefix missing")
	}
	n := int(data[0])
	data = data[1:]
	if len(data) < n {
		return "", nil, parseErr(ErrTruncatedBody, "string needs %d bytes, have %d", n, len(data))
	}
	return string(data[:n]), data[n:], nil
}

// EncodeIdentity serializes p and wraps it via Encode.
func EncodeIdentity(p IdentityPacket, frameFlags Flags) ([]byte, error) {
	body := make([]byte, 0, 32+len(p.DeviceManufacturer)+len(p.DeviceName)+len(p.DeviceModel))
	var buf2 [2]byte
	binary.BigEndian.PutUint16(buf2[:], p.HostID)
	body = append(body, buf2[:]...)
	body = putString(body, p.DeviceManufacturer)
	body = putString(body, p.DeviceName)
	body = putString(body, p.DeviceModel)
	binary.BigEndian.PutUint16(buf2[:], p.VendorID)
	body = append(body, buf2[:]...)
	binary.BigEndian.PutUint16(buf2[:], p.ProductID)
	body = append(body, buf2[:]...)
	var buf4 [4]byte
	binary.BigEndian.PutUint32(buf4[:], p.UniqueID)
	body = append(body, buf4[:]...)
	body = append(body, p.PortCountIn, p.PortCountOut)
	binary.BigEndian.PutUint16(buf2[:], p.Capabilities)
	body = append(body, buf2[:]...)
	return Encode(KindIdentity, frameFlags, body)
}

// DecodeIdentity parses an IdentityPacket body.
func DecodeIdentity(body []byte) (IdentityPacket, error) {
	if len(body) < 2 {
		return IdentityPacket{}, parseErr(ErrTruncatedBody, "identity body too short")
	}
	p := IdentityPacket{HostID: binary.BigEndian.Uint16(body[0:2])}
	rest := body[2:]

	var err error
	p.DeviceManufacturer, rest, err = getString(rest)
	if err != nil {
		return IdentityPacket{}, err
	}
	p.DeviceName, rest, err = getString(rest)
	if err != nil {
		return IdentityPacket{}, err
	}
	p.DeviceModel, rest, err = getString(rest)
	if err != nil {
		return IdentityPacket{}, err
	}

	if len(rest) < 2+2+4+1+1+2 {
		return IdentityPacket{}, parseErr(ErrTruncatedBody, "identity trailer too short")
	}
	p.VendorID = binary.BigEndian.Uint16(rest[0:2])
	p.ProductID = binary.BigEndian.Uint16(rest[2:4])
	p.UniqueID = binary.BigEndian.Uint32(rest[4:8])
	p.PortCountIn = rest[8]
	p.PortCountOut = rest[9]
	p.Capabilities = binary.BigEndian.Uint16(rest[10:12])
	return p, nil
}
