package compress

import (
	"bytes"
	"compress/flate"
	"io"

	"go.uber.org/zap"
)

// FastLZCompressor stands in for the specification's fast-LZ compressor:
// tag 2, threshold 512 bytes. It favors compression speed over ratio, so it
// runs flate at its fastest level rather than gzip's balanced default —
// the same speed/ratio tradeoff fast-LZ makes against gzip-family
// compression in practice.
type FastLZCompressor struct{}

func (c *FastLZCompressor) Tag() Tag       { return TagFastLZ }
func (c *FastLZCompressor) Threshold() int { return 512 }

func (c *FastLZCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		zap.L().Warn("fastlz compress failed, sending uncompressed", zap.Error(err))
		return data, nil
	}
	if _, err := w.Write(data); err != nil {
		zap.L().Warn("fastlz compress failed, sending uncompressed", zap.Error(err))
		return data, nil
	}
	if err := w.Close(); err != nil {
		zap.L().Warn("fastlz compress flush failed, sending uncompressed", zap.Error(err))
		return data, nil
	}
	if buf.Len() >= len(data) {
		return data, nil
	}
	return buf.Bytes(), nil
}

func (c *FastLZCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}
