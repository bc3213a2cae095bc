// Package compress provides the named compressor registry used by the
// protocol codec to shrink large payloads before they hit the wire.
package compress

import (
	"errors"

	"mini-rpc/extension"
)

// Tag identifies a compressor on the wire (protocol.Header.CompressTag).
type Tag byte

const (
	TagNone   Tag = 0
	TagGzip   Tag = 1 // gzip-family, threshold 1024 bytes
	TagFastLZ Tag = 2 // fast-LZ, threshold 512 bytes
	TagLZ4    Tag = 3 // LZ4-family, threshold 256 bytes, length-prefixed
)

// ErrUnknownCompressor mirrors ErrUnknownCodec: a frame names a tag nothing
// implements.
var ErrUnknownCompressor = errors.New("compress: unknown compressor tag")

// Compressor is a named, fixed-byte-tag (de)compression strategy.
//
// Policy (enforced by each implementation, not by the registry): if the
// compressed output isn't strictly smaller than the input, Compress returns
// the input unchanged; if compression itself errors, Compress logs a
// warning and returns the input unchanged — a frame is never corrupted by a
// failed compression attempt. Decompress has no such leniency: a
// decompression failure is always fatal to the frame, since there is no
// "maybe it just wasn't compressed" ambiguity once the tag says otherwise.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Tag() Tag
	// Threshold is the minimum payload size worth attempting compression
	// on; callers below this boundary should just send the tag-None form.
	Threshold() int
}

var registry = map[Tag]Compressor{
	TagNone:   &NoneCompressor{},
	TagGzip:   &GzipCompressor{},
	TagFastLZ: &FastLZCompressor{},
	TagLZ4:    &LZ4Compressor{},
}

// Get resolves a compressor by wire tag.
func Get(tag Tag) (Compressor, error) {
	c, ok := registry[tag]
	if !ok {
		return nil, ErrUnknownCompressor
	}
	return c, nil
}

// SelectTag returns the tag to use for a payload of the given size given a
// preferred compressor — below that compressor's threshold, tag-None is
// used instead so tiny payloads don't pay the compression framing cost.
func SelectTag(preferred Tag, payloadLen int) (Tag, error) {
	if preferred == TagNone {
		return TagNone, nil
	}
	c, err := Get(preferred)
	if err != nil {
		return TagNone, err
	}
	if payloadLen < c.Threshold() {
		return TagNone, nil
	}
	return preferred, nil
}

func init() {
	extension.Register("compressor", "none", func() any { return &NoneCompressor{} })
	extension.Register("compressor", "gzip", func() any { return &GzipCompressor{} })
	extension.Register("compressor", "fastlz", func() any { return &FastLZCompressor{} })
	extension.Register("compressor", "lz4", func() any { return &LZ4Compressor{} })
}
