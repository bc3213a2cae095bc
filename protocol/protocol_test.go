package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	header := Header{
		CodecTag:    1,
		CompressTag: 0,
		MsgType:     MsgTypeRequest,
		RequestID:   12345,
	}
	body := []byte("hello world")

	var buf bytes.Buffer
	if err := Encode(&buf, &header, body); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decodedHeader, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decodedHeader.CodecTag != header.CodecTag {
		t.Errorf("CodecTag mismatch: got %d, want %d", decodedHeader.CodecTag, header.CodecTag)
	}
	if decodedHeader.MsgType != header.MsgType {
		t.Errorf("MsgType mismatch: got %d, want %d", decodedHeader.MsgType, header.MsgType)
	}
	if decodedHeader.RequestID != header.RequestID {
		t.Errorf("RequestID mismatch: got %d, want %d", decodedHeader.RequestID, header.RequestID)
	}
	if int(decodedHeader.BodyLen) != len(body) {
		t.Errorf("BodyLen mismatch: got %d, want %d", decodedHeader.BodyLen, len(body))
	}
	if !bytes.Equal(decodedBody, body) {
		t.Errorf("Body mismatch: got %s, want %s", decodedBody, body)
	}
}

// TestTotalLengthOnWire covers scenario 6 of the testable properties: the
// frame's total-length field equals HeaderSize + len(payload) on the wire.
func TestTotalLengthOnWire(t *testing.T) {
	body := make([]byte, 8*1024)
	var buf bytes.Buffer
	if err := Encode(&buf, &Header{MsgType: MsgTypeRequest, CodecTag: 1}, body); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	wire := buf.Bytes()
	total := binary.BigEndian.Uint32(wire[5:9])
	if int(total) != HeaderSize+len(body) {
		t.Errorf("totalLen mismatch: got %d, want %d", total, HeaderSize+len(body))
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	invalidHeader := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(invalidHeader[0:4], 0xDEADBEEF)
	invalidHeader[4] = Version
	binary.BigEndian.PutUint32(invalidHeader[5:9], uint32(HeaderSize))

	var buf bytes.Buffer
	buf.Write(invalidHeader)

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("expected error for invalid magic number, got nil")
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	header := Header{MsgType: MsgTypeRequest, CodecTag: 1, RequestID: 12345}
	var buf bytes.Buffer
	if err := Encode(&buf, &header, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decodedHeader, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decodedHeader.BodyLen != 0 {
		t.Errorf("BodyLen mismatch: got %d, want 0", decodedHeader.BodyLen)
	}
	if len(decodedBody) != 0 {
		t.Errorf("expected empty body, got length %d", len(decodedBody))
	}
}

func TestDecodeInvalidVersion(t *testing.T) {
	invalidHeader := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(invalidHeader[0:4], Magic)
	invalidHeader[4] = 0xFF // wrong version
	binary.BigEndian.PutUint32(invalidHeader[5:9], uint32(HeaderSize))

	var buf bytes.Buffer
	buf.Write(invalidHeader)

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("expected error for unsupported version, got nil")
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	invalidHeader := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(invalidHeader[0:4], Magic)
	invalidHeader[4] = Version
	binary.BigEndian.PutUint32(invalidHeader[5:9], uint32(MaxFrameSize+1))

	var buf bytes.Buffer
	buf.Write(invalidHeader)

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("expected error for oversized frame, got nil")
	}
}

func TestDecodeLargeBody(t *testing.T) {
	var buf bytes.Buffer

	largeBody := make([]byte, 512*1024)
	for i := range largeBody {
		largeBody[i] = byte(i % 256)
	}

	header := &Header{MsgType: MsgTypeRequest, CodecTag: 2, RequestID: 999}

	if err := Encode(&buf, header, largeBody); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	_, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !bytes.Equal(decodedBody, largeBody) {
		t.Errorf("large body mismatch")
	}
}
