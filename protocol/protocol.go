// Package protocol implements the binary frame protocol used by the RPC
// transport layer.
//
// It solves TCP's sticky-packet problem with a fixed 20-byte header followed
// by a variable-length body. The receiver reads the header first, learns the
// body length, and reads exactly that many bytes before handing the frame to
// the codec/compressor pipeline.
//
// Frame format (all multi-byte integers big-endian):
//
//	0          4  5          9  10 11 12      20
//	┌──────────┬──┬───────────┬──┬──┬──┬────────┬───────────────┐
//	│  magic    │v │ totalLen  │mt│ct│cc│ reqID  │    body ...    │
//	│0xCAFEBABE │01│  uint32   │  │  │  │ uint64 │ bodyLen bytes │
//	└──────────┴──┴───────────┴──┴──┴──┴────────┴───────────────┘
//
// totalLen counts the entire frame, header included, so a decoder that has
// only read the header knows exactly how many more bytes to read.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic identifies a mini-rpc frame and lets a server reject non-protocol
// connections (an HTTP client hitting the wrong port, say) quickly.
const Magic uint32 = 0xCAFEBABE

// Version is the only wire version this codec currently understands.
const Version byte = 1

// HeaderSize is the fixed header length: 4 (magic) + 1 (version) +
// 4 (totalLen) + 1 (msgType) + 1 (codec tag) + 1 (compression tag) +
// 8 (request id).
const HeaderSize = 20

// MaxFrameSize bounds totalLen so a corrupt or adversarial length field can't
// force an unbounded allocation.
const MaxFrameSize = 1 << 20 // 1 MiB

// MsgType distinguishes request and response frames.
type MsgType byte

const (
	MsgTypeRequest  MsgType = 1
	MsgTypeResponse MsgType = 2
)

// Sentinel errors, part of the framework-wide error taxonomy.
var (
	ErrProtocol           = errors.New("protocol: invalid magic number")
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
	ErrFrameTooLarge      = errors.New("protocol: frame exceeds maximum size")
)

// Header is the fixed 20-byte frame header.
type Header struct {
	MsgType     MsgType
	CodecTag    byte
	CompressTag byte
	RequestID   uint64
	BodyLen     uint32 // derived on decode, not itself a wire field
}

// Encode writes a complete frame (header + body) to w.
//
// The caller must serialize writes to w if multiple goroutines share the
// same connection — see client.Multiplexer and server.Server, both of which
// hold a per-connection write mutex around Encode.
func Encode(w io.Writer, h *Header, body []byte) error {
	total := HeaderSize + len(body)
	if total > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, total)
	}

	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	buf[4] = Version
	binary.BigEndian.PutUint32(buf[5:9], uint32(total))
	buf[9] = byte(h.MsgType)
	buf[10] = h.CodecTag
	buf[11] = h.CompressTag
	binary.BigEndian.PutUint64(buf[12:20], h.RequestID)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads one complete frame from r, validating magic/version and
// enforcing MaxFrameSize before allocating the body buffer.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	magic := binary.BigEndian.Uint32(headerBuf[0:4])
	if magic != Magic {
		return nil, nil, fmt.Errorf("%w: got %#x", ErrProtocol, magic)
	}

	version := headerBuf[4]
	if version != Version {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	total := binary.BigEndian.Uint32(headerBuf[5:9])
	if int(total) > MaxFrameSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, total)
	}
	if int(total) < HeaderSize {
		return nil, nil, fmt.Errorf("%w: totalLen %d smaller than header", ErrProtocol, total)
	}
	bodyLen := int(total) - HeaderSize

	header := &Header{
		MsgType:     MsgType(headerBuf[9]),
		CodecTag:    headerBuf[10],
		CompressTag: headerBuf[11],
		RequestID:   binary.BigEndian.Uint64(headerBuf[12:20]),
		BodyLen:     uint32(bodyLen),
	}

	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, nil, err
		}
	}

	return header, body, nil
}
