package transport

import (
	"encoding/binary"
	"io"
)

// FrameHeaderSize is the on-wire header preceding every frame payload:
// 4 bytes of big-endian length, 1 byte of flags.
const FrameHeaderSize = 4 + 1

// frameMoreFlag marks a frame as followed by more frames of the same
// message, mirroring SNDMORE semantics.
const frameMoreFlag = 0x01

// EncodeFrame writes one length-prefixed frame to w: 4 bytes big-endian
// length, 1 byte more-flag, then the payload. A spdnet transport frame has
// no type of its own; typing lives in the frame group, not the frame.
func EncodeFrame(w io.Writer, payload []byte, more bool) error {
	var hdr [FrameHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(payload)))
	if more {
		hdr[4] = frameMoreFlag
	}
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame from r, returning its payload
// and whether more frames follow in the same group.
func ReadFrame(r io.Reader) (payload []byte, more bool, err error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, false, err
	}
	n := binary.BigEndian.Uint32(hdr[:4])
	more = hdr[4]&frameMoreFlag != 0
	if n == 0 {
		return nil, more, nil
	}
	payload = make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, false, err
	}
	return payload, more, nil
}
