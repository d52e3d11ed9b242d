package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4"
)

// NoCompressor is a pass-through.
type NoCompressor struct{}

func (c *NoCompressor) Name() string { return "none" }

func (c *NoCompressor) Compress(data []byte, level int) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (c *NoCompressor) Decompress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// LZ4Compressor compresses with LZ4 block format. The uncompressed size
// is prepended so decompression can size its buffer exactly.
type LZ4Compressor struct{}

func (c *LZ4Compressor) Name() string { return "lz4" }

func (c *LZ4Compressor) Compress(data []byte, level int) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(data)))

	n, err := lz4.CompressBlock(data, buf[4:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 {
		// Incompressible input: store it raw, flagged by a zero size prefix.
		raw := make([]byte, 4+len(data))
		copy(raw[4:], data)
		return raw, nil
	}
	return buf[:4+n], nil
}

func (c *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("lz4 decompress: truncated input")
	}

	size := binary.LittleEndian.Uint32(data[0:4])
	if size == 0 {
		out := make([]byte, len(data)-4)
		copy(out, data[4:])
		return out, nil
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[4:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return out[:n], nil
}
