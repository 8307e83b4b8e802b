package protocol

import "encoding/binary"

// SysEx fragment bodies are prefixed with sysexID(2) fragIdx(2)
// totalFrags(2) final(1), then the chunk payload. The outer MidiMessage
// carries this as Bytes with Kind == SysExFragment.
const sysexFragHeaderLen = 2 + 2 + 2 + 1

// maxFragsPerStream bounds how many SysEx reassembly streams are tracked
// per sender before the oldest is evicted (§4.1, §9).
const maxFragsPerStream = 8

// reassemblyBufSize is the pre-allocated capacity of each in-flight SysEx
// reassembly buffer.
const reassemblyBufSize = 16 * 1024

// SplitSysEx fragments a single SysEx payload into MidiMessages of Kind
// SysExFragment whose Bytes (fragment header plus chunk) are each at most
// maxChunk long, with at least one payload byte per fragment; the encoded
// message adds EncodedMessageLen's fixed 12 bytes on top of that.
func SplitSysEx(sysexID uint16, channel uint8, ts uint64, payload []byte, maxChunk int) []MidiMessage {
	chunkPayload := maxChunk - sysexFragHeaderLen
	if chunkPayload < 1 {
		chunkPayload = 1
	}
	total := (len(payload) + chunkPayload - 1) / chunkPayload
	if total == 0 {
		total = 1
	}

	out := make([]MidiMessage, 0, total)
	for i := 0; i < total; i++ {
		start := i * chunkPayload
		end := start + chunkPayload
		if end > len(payload) {
			end = len(payload)
		}
		body := make([]byte, sysexFragHeaderLen+(end-start))
		binary.BigEndian.PutUint16(body[0:2], sysexID)
		binary.BigEndian.PutUint16(body[2:4], uint16(i))
		binary.BigEndian.PutUint16(body[4:6], uint16(total))
		if i == total-1 {
			body[6] = 1
		}
		copy(body[sysexFragHeaderLen:], payload[start:end])

		out = append(out, MidiMessage{
			Channel:     channel,
			Kind:        SysExFragment,
			Bytes:       body,
			TimestampNS: ts,
		})
	}
	return out
}

// sysexFragment is the parsed form of a SysExFragment MidiMessage's Bytes.
type sysexFragment struct {
	sysexID    uint16
	fragIdx    uint16
	totalFrags uint16
	final      bool
	payload    []byte
}

func parseSysexFragment(b []byte) (sysexFragment, error) {
	if len(b) < sysexFragHeaderLen {
		return sysexFragment{}, parseErr(ErrTruncatedBody, "sysex fragment header needs %d bytes, have %d", sysexFragHeaderLen, len(b))
	}
	return sysexFragment{
		sysexID:    binary.BigEndian.Uint16(b[0:2]),
		fragIdx:    binary.BigEndian.Uint16(b[2:4]),
		totalFrags: binary.BigEndian.Uint16(b[4:6]),
		final:      b[6] != 0,
		payload:    b[sysexFragHeaderLen:],
	}, nil
}

// stream tracks one in-flight SysEx reassembly.
type stream struct {
	sysexID    uint16
	buf        []byte
	received   int
	totalFrags uint16
	channel    uint8
	ts         uint64
	lastTouch  uint64 // monotonic-ish ordering counter, not wall time
}

// Reassembler reconstructs SysEx payloads from fragments received from a
// single sender. It holds at most maxFragsPerStream in-flight streams;
// on overflow the least-recently-touched stream is discarded (§4.1).
type Reassembler struct {
	streams []*stream // nil slots are free
	clock   uint64
}

// NewReassembler returns a Reassembler with no in-flight streams.
func NewReassembler() *Reassembler {
	return &Reassembler{streams: make([]*stream, 0, maxFragsPerStream)}
}

// Feed processes one SysExFragment MidiMessage. It returns the
// reassembled MidiMessage (Kind == SysEx) once the final fragment of a
// stream arrives, or ok == false if more fragments are still needed.
func (r *Reassembler) Feed(m MidiMessage) (MidiMessage, bool, error) {
	if m.Kind != SysExFragment {
		return MidiMessage{}, false, parseErr(ErrUnknownKind, "Feed called with non-fragment message kind %d", m.Kind)
	}
	frag, err := parseSysexFragment(m.Bytes)
	if err != nil {
		return MidiMessage{}, false, err
	}
	r.clock++

	st := r.find(frag.sysexID)
	if st == nil {
		st = r.alloc(frag.sysexID, frag.totalFrags, m.Channel, m.TimestampNS)
	}
	st.lastTouch = r.clock

	return r.feedFragment(st, frag)
}

// feedFragment assumes fragments for a given stream arrive in index order,
// true on a single UDP path from one sender absent reordering; it does not
// defend against replay or out-of-order delivery.
func (r *Reassembler) feedFragment(st *stream, frag sysexFragment) (MidiMessage, bool, error) {
	if int(frag.fragIdx) == 0 {
		st.buf = st.buf[:0]
	}
	st.buf = append(st.buf, frag.payload...)
	st.received++

	if !frag.final {
		return MidiMessage{}, false, nil
	}

	out := MidiMessage{
		Channel:     st.channel,
		Kind:        SysEx,
		Bytes:       append([]byte(nil), st.buf...),
		TimestampNS: st.ts,
	}
	r.release(st)
	return out, true, nil
}

func (r *Reassembler) find(id uint16) *stream {
	for _, s := range r.streams {
		if s != nil && s.sysexID == id {
			return s
		}
	}
	return nil
}

func (r *Reassembler) alloc(id uint16, totalFrags uint16, channel uint8, ts uint64) *stream {
	st := &stream{
		sysexID:    id,
		buf:        make([]byte, 0, reassemblyBufSize),
		totalFrags: totalFrags,
		channel:    channel,
		ts:         ts,
	}

	if len(r.streams) < maxFragsPerStream {
		r.streams = append(r.streams, st)
		return st
	}

	oldestIdx := 0
	for i, s := range r.streams {
		if s == nil {
			r.streams[i] = st
			return st
		}
		if s.lastTouch < r.streams[oldestIdx].lastTouch {
			oldestIdx = i
		}
	}
	r.streams[oldestIdx] = st
	return st
}

func (r *Reassembler) release(st *stream) {
	for i, s := range r.streams {
		if s == st {
			r.streams[i] = nil
			return
		}
	}
}
