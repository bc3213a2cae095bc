package compress

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"io"

	"go.uber.org/zap"
)

// LZ4Compressor stands in for the specification's LZ4-family compressor:
// tag 3, threshold 256 bytes, and — per the wire contract — a 4-byte
// big-endian original-length prefix ahead of the compressed bytes. Real
// LZ4 needs that prefix to preallocate its output buffer; this
// implementation preserves the prefix on the wire even though flate
// doesn't need it, so a future swap-in of a true LZ4 codec changes nothing
// about the frame layout.
type LZ4Compressor struct{}

func (c *LZ4Compressor) Tag() Tag       { return TagLZ4 }
func (c *LZ4Compressor) Threshold() int { return 256 }

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	var body bytes.Buffer
	w, err := flate.NewWriter(&body, flate.BestSpeed)
	if err != nil {
		zap.L().Warn("lz4 compress failed, sending uncompressed", zap.Error(err))
		return data, nil
	}
	if _, err := w.Write(data); err != nil {
		zap.L().Warn("lz4 compress failed, sending uncompressed", zap.Error(err))
		return data, nil
	}
	if err := w.Close(); err != nil {
		zap.L().Warn("lz4 compress flush failed, sending uncompressed", zap.Error(err))
		return data, nil
	}

	out := make([]byte, 4+body.Len())
	binary.BigEndian.PutUint32(out[0:4], uint32(len(data)))
	copy(out[4:], body.Bytes())

	if len(out) >= len(data) {
		return data, nil
	}
	return out, nil
}

func (c *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("lz4: truncated length prefix")
	}
	originalLen := binary.BigEndian.Uint32(data[0:4])

	r := flate.NewReader(bytes.NewReader(data[4:]))
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if uint32(len(out)) != originalLen {
		return nil, errors.New("lz4: decompressed length mismatch")
	}
	return out, nil
}
