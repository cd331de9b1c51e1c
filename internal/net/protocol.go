package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frames of the raw TCP protocol. A request is
//
//	op(1) | index(4, big endian)
//
// and the response is
//
//	status(1) | length(4, big endian) | payload
//
// where the payload holds the signature for StatusOK and an error text
// otherwise.
const (
	OpGetSignature byte = 0x01

	StatusOK    byte = 0x00
	StatusError byte = 0x01

	// MaxPayload bounds the length a peer can announce.
	MaxPayload = 1 << 16
)

// ErrProtocol is returned for frames that don't follow the protocol.
var ErrProtocol = errors.New("protocol violation")

// WriteRequest writes a signature request for index.
func WriteRequest(w io.Writer, index uint32) error {
	var buff [5]byte
	buff[0] = OpGetSignature
	binary.BigEndian.PutUint32(buff[1:], index)
	_, err := w.Write(buff[:])
	return err
}

// ReadRequest reads a request frame and returns the requested index.
func ReadRequest(r io.Reader) (uint32, error) {
	var buff [5]byte
	if _, err := io.ReadFull(r, buff[:]); err != nil {
		return 0, err
	}
	if buff[0] != OpGetSignature {
		return 0, fmt.Errorf("%w: unknown op %#x", ErrProtocol, buff[0])
	}
	return binary.BigEndian.Uint32(buff[1:]), nil
}

// WriteResponse writes a response frame.
func WriteResponse(w io.Writer, status byte, payload []byte) error {
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: payload of %d bytes", ErrProtocol, len(payload))
	}
	buff := make([]byte, 5+len(payload))
	buff[0] = status
	binary.BigEndian.PutUint32(buff[1:5], uint32(len(payload)))
	copy(buff[5:], payload)
	_, err := w.Write(buff)
	return err
}

// ReadResponse reads a response frame. A non-OK status is returned as an
// ErrServer error carrying the server text.
func ReadResponse(r io.Reader) ([]byte, error) {
	var head [5]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(head[1:])
	if n > MaxPayload {
		return nil, fmt.Errorf("%w: announced %d bytes", ErrProtocol, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	switch head[0] {
	case StatusOK:
		return payload, nil
	case StatusError:
		return nil, fmt.Errorf("%w: %s", ErrServer, payload)
	default:
		return nil, fmt.Errorf("%w: unknown status %#x", ErrProtocol, head[0])
	}
}
