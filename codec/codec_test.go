package codec

import "testing"

type sample struct {
	A int
	B string
	C []string
}

func TestJSONCodecRoundTrip(t *testing.T) {
	testCodecRoundTrip(t, &JSONCodec{}, TagJSON)
}

func TestMsgpackCodecRoundTrip(t *testing.T) {
	testCodecRoundTrip(t, &MsgpackCodec{}, TagMsgpack)
}

func TestGobCodecRoundTrip(t *testing.T) {
	testCodecRoundTrip(t, &GobCodec{}, TagGob)
}

func testCodecRoundTrip(t *testing.T, c Codec, wantTag Tag) {
	t.Helper()

	if c.Tag() != wantTag {
		t.Fatalf("Tag() = %v, want %v", c.Tag(), wantTag)
	}

	original := &sample{A: 42, B: "hello", C: []string{"x", "y", "z"}}

	data, err := c.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded sample
	if err := c.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.A != original.A || decoded.B != original.B || len(decoded.C) != len(original.C) {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestGetUnknownTag(t *testing.T) {
	if _, err := Get(Tag(99)); err != ErrUnknownCodec {
		t.Errorf("Get(99) error = %v, want ErrUnknownCodec", err)
	}
}

func TestGetKnownTags(t *testing.T) {
	for _, tag := range []Tag{TagJSON, TagMsgpack, TagGob} {
		if _, err := Get(tag); err != nil {
			t.Errorf("Get(%v) returned error: %v", tag, err)
		}
	}
}
