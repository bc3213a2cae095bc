package codec

import (
	"bytes"
	"encoding/gob"
	"sync"
)

// GobCodec is the compact binary codec (the specification's
// protobuf-via-runtime-schema-equivalent): it derives its wire schema from
// the value's reflected type at encode time, so no predeclared .proto file
// is needed, yet the encoding is considerably tighter than JSON.
//
// gob.Encoder/gob.Decoder are stateful per stream (the encoder only writes
// a type's field descriptor once per stream), so each call constructs a
// throwaway encoder/decoder; the *bytes.Buffer the encoder writes into is
// pooled to avoid a fresh allocation on every Encode — the per-worker
// buffer pool that replaces a thread-local buffer in a single-threaded
// runtime. Decode reads straight from the input slice.
type GobCodec struct{}

var gobBufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func (c *GobCodec) Encode(v any) ([]byte, error) {
	buf := gobBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer gobBufPool.Put(buf)

	if err := gob.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	// Copy out: buf is about to be returned to the pool and reused.
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (c *GobCodec) Decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (c *GobCodec) Tag() Tag {
	return TagGob
}
