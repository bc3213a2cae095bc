package compress

import (
	"bytes"
	"compress/gzip"
	"io"

	"go.uber.org/zap"
)

// GzipCompressor is the gzip-family compressor, tag 1, threshold 1024 bytes.
type GzipCompressor struct{}

func (c *GzipCompressor) Tag() Tag       { return TagGzip }
func (c *GzipCompressor) Threshold() int { return 1024 }

func (c *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		zap.L().Warn("gzip compress failed, sending uncompressed", zap.Error(err))
		return data, nil
	}
	if err := w.Close(); err != nil {
		zap.L().Warn("gzip compress flush failed, sending uncompressed", zap.Error(err))
		return data, nil
	}
	if buf.Len() >= len(data) {
		// Not strictly smaller — policy says keep the original.
		return data, nil
	}
	return buf.Bytes(), nil
}

func (c *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
