package codec

import "github.com/vmihailenco/msgpack/v5"

// MsgpackCodec is the portable, self-describing binary codec (the
// Hessian-equivalent of the specification): values carry enough type
// information in the encoded stream to round-trip without a predeclared
// schema, but it's more compact than JSON since it doesn't repeat field
// names as text.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (c *MsgpackCodec) Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (c *MsgpackCodec) Tag() Tag {
	return TagMsgpack
}
