package compress

// NoneCompressor is the identity compressor — tag 0, always selected for
// payloads under every other compressor's threshold.
type NoneCompressor struct{}

func (c *NoneCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (c *NoneCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

func (c *NoneCompressor) Tag() Tag {
	return TagNone
}

func (c *NoneCompressor) Threshold() int {
	return 0
}
