package tcpsub

import (
	"encoding/binary"
	"io"
)

// Wire format of a header-driven frame:
//
//	byte 0-1 : payload length L, uint16, little-endian
//	byte 2.. : L bytes of payload
const (
	// HeaderSize is the size of the length prefix.
	HeaderSize = 2
	// MaxPayloadSize is the largest payload a single frame can carry.
	MaxPayloadSize = 1<<16 - 1
)

// byteOrder is fixed by the wire contract with the publisher.
var byteOrder = binary.LittleEndian

// EncodeFrame returns payload prefixed with its length header.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, opError("encode", ErrFrameTooLarge, nil)
	}
	buf := make([]byte, HeaderSize+len(payload))
	byteOrder.PutUint16(buf, uint16(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// WriteFrame writes payload to w as a single header-driven frame.
func WriteFrame(w io.Writer, payload []byte) error {
	buf, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// readFrame reads one header-driven frame from r.
// A zero length header yields an empty, non-nil payload.
func readFrame(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	payload, err := readExact(r, byteOrder.Uint16(header[:]))
	if err == io.EOF {
		// the stream ended inside a frame
		err = io.ErrUnexpectedEOF
	}
	return payload, err
}

// readExact reads exactly n bytes from r.
func readExact(r io.Reader, n uint16) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
