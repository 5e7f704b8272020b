package arraystore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor names as written to the "id" field of .zarray.
const (
	CompressorNone = "none"
	CompressorZstd = "zstd"
	CompressorLZ4  = "lz4"
)

// CompressorConfig is the "compressor" entry of .zarray.
type CompressorConfig struct {
	ID           string `json:"id"`
	Level        int    `json:"level,omitempty"`
	Acceleration int    `json:"acceleration,omitempty"`
}

// ZSTD encoder/decoder pools, keyed by level for encoders.
var (
	zstdEncoders sync.Map // int -> *sync.Pool
	zstdDecoders sync.Pool
)

func getZstdEncoder(level int) (*zstd.Encoder, func(), error) {
	v, _ := zstdEncoders.LoadOrStore(level, &sync.Pool{})
	pool := v.(*sync.Pool)
	if enc, ok := pool.Get().(*zstd.Encoder); ok {
		return enc, func() { pool.Put(enc) }, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, nil, err
	}
	return enc, func() { pool.Put(enc) }, nil
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if dec, ok := zstdDecoders.Get().(*zstd.Decoder); ok {
		return dec, nil
	}
	return zstd.NewReader(nil)
}

// newCompressorConfig validates a compressor name and level.
func newCompressorConfig(name string, level int) (*CompressorConfig, error) {
	switch name {
	case "", CompressorNone:
		return nil, nil
	case CompressorZstd:
		if level == 0 {
			level = 3
		}
		return &CompressorConfig{ID: CompressorZstd, Level: level}, nil
	case CompressorLZ4:
		return &CompressorConfig{ID: CompressorLZ4, Acceleration: 1}, nil
	default:
		return nil, fmt.Errorf("unknown compressor %q", name)
	}
}

// encodeChunk compresses a raw chunk. LZ4 chunks carry a 4-byte little-endian
// uncompressed size before the block, as numcodecs writes them.
func encodeChunk(cfg *CompressorConfig, raw []byte) ([]byte, error) {
	if cfg == nil {
		return raw, nil
	}

	switch cfg.ID {
	case CompressorZstd:
		enc, release, err := getZstdEncoder(cfg.Level)
		if err != nil {
			return nil, err
		}
		defer release()
		return enc.EncodeAll(raw, nil), nil

	case CompressorLZ4:
		out := make([]byte, 4+lz4.CompressBlockBound(len(raw)))
		binary.LittleEndian.PutUint32(out, uint32(len(raw)))
		n, err := lz4.CompressBlock(raw, out[4:], nil)
		if err != nil {
			return nil, err
		}
		if n == 0 && len(raw) > 0 {
			return nil, errors.New("lz4: block could not be compressed")
		}
		return out[:4+n], nil

	default:
		return nil, fmt.Errorf("unknown compressor %q", cfg.ID)
	}
}

// decodeChunk reverses encodeChunk.
func decodeChunk(cfg *CompressorConfig, data []byte) ([]byte, error) {
	if cfg == nil {
		return data, nil
	}

	switch cfg.ID {
	case CompressorZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoders.Put(dec)
		return dec.DecodeAll(data, nil)

	case CompressorLZ4:
		if len(data) < 4 {
			return nil, errors.New("lz4: chunk too small for header")
		}
		size := binary.LittleEndian.Uint32(data)
		out := make([]byte, size)
		if size == 0 {
			return out, nil
		}
		n, err := lz4.UncompressBlock(data[4:], out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != size {
			return nil, errors.New("lz4: decompressed size mismatch")
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown compressor %q", cfg.ID)
	}
}
