// Package codec provides the named serializer registry: byte-tag-addressed
// implementations of the wire payload format selected per frame.
package codec

import (
	"errors"

	"mini-rpc/extension"
)

// Tag identifies a codec on the wire (protocol.Header.CodecTag).
type Tag byte

const (
	TagNone    Tag = 0 // reserved, no codec selected
	TagJSON    Tag = 1
	TagMsgpack Tag = 2 // portable binary, Hessian-equivalent
	TagGob     Tag = 3 // compact binary, reflection-schema binary
)

// ErrUnknownCodec is returned when a frame names a tag with no registered
// implementation.
var ErrUnknownCodec = errors.New("codec: unknown codec tag")

// Codec serializes and deserializes values. Implementations must be safe
// for concurrent use — the same instance is shared by every connection.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Tag() Tag
}

var registry = map[Tag]Codec{
	TagJSON:    &JSONCodec{},
	TagMsgpack: &MsgpackCodec{},
	TagGob:     &GobCodec{},
}

// Get resolves a codec by wire tag. Returns ErrUnknownCodec for an
// unregistered tag rather than silently falling back, since a decoder that
// guesses the wrong codec corrupts the payload.
func Get(tag Tag) (Codec, error) {
	c, ok := registry[tag]
	if !ok {
		return nil, ErrUnknownCodec
	}
	return c, nil
}

// MustGet is Get but panics on an unknown tag — for call sites (tests,
// fixed internal wiring) where the tag is a compile-time constant and an
// unknown tag represents a programming error, not bad input.
func MustGet(tag Tag) Codec {
	c, err := Get(tag)
	if err != nil {
		panic(err)
	}
	return c
}

func init() {
	extension.Register("codec", "json", func() any { return &JSONCodec{} })
	extension.Register("codec", "msgpack", func() any { return &MsgpackCodec{} })
	extension.Register("codec", "gob", func() any { return &GobCodec{} })
}
