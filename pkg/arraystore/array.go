package arraystore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"idftprep/pkg/ndarray"
)

// Element is the set of element types an array on disk may hold.
type Element interface {
	bool | int32 | float32 | float64 | complex64 | complex128
}

const (
	arrayMetaFile = ".zarray"
	groupMetaFile = ".zgroup"
)

// Metadata is the content of a .zarray file.
type Metadata struct {
	ZarrFormat int               `json:"zarr_format"`
	Shape      []int             `json:"shape"`
	Chunks     []int             `json:"chunks"`
	DType      string            `json:"dtype"`
	Compressor *CompressorConfig `json:"compressor"`
	FillValue  any               `json:"fill_value"`
	Order      string            `json:"order"`
	Filters    []any             `json:"filters"`
}

// dtypeOf returns the zarr dtype string of T.
func dtypeOf[T Element]() string {
	var zero T
	switch any(zero).(type) {
	case bool:
		return "|b1"
	case int32:
		return "<i4"
	case float32:
		return "<f4"
	case float64:
		return "<f8"
	case complex64:
		return "<c8"
	case complex128:
		return "<c16"
	}
	panic("unreachable")
}

// ArrayOptions controls how a single array is written.
type ArrayOptions struct {
	Compressor string
	Level      int

	// ChunkRows is the chunk length along the first axis.
	ChunkRows int

	// Limiter, when set, throttles chunk writes.
	Limiter *IOLimiter
}

// chunkShape splits along the first axis only.
func chunkShape(shape []int, rows int) []int {
	chunks := slices.Clone(shape)
	if len(chunks) == 0 {
		return chunks
	}
	if rows <= 0 || rows > shape[0] {
		rows = shape[0]
	}
	if rows < 1 {
		rows = 1
	}
	chunks[0] = rows
	return chunks
}

// chunkKey names chunk i along the first axis of an ndim array ("i.0.0").
func chunkKey(i, ndim int) string {
	parts := make([]string, max(ndim, 1))
	parts[0] = strconv.Itoa(i)
	for k := 1; k < len(parts); k++ {
		parts[k] = "0"
	}
	return strings.Join(parts, ".")
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeGroupMeta(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, groupMetaFile), map[string]int{"zarr_format": 2})
}

func isGroup(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, groupMetaFile))
	return err == nil
}

// WriteArray stores a as a chunked array in dir. Chunks are encoded and
// written concurrently.
func WriteArray[T Element](ctx context.Context, dir string, a ndarray.Array[T], opts ArrayOptions) error {
	comp, err := newCompressorConfig(opts.Compressor, opts.Level)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create array directory: %w", err)
	}

	var fill any = 0
	if dtypeOf[T]() == "|b1" {
		fill = false
	}
	meta := Metadata{
		ZarrFormat: 2,
		Shape:      slices.Clone(a.Shape),
		Chunks:     chunkShape(a.Shape, opts.ChunkRows),
		DType:      dtypeOf[T](),
		Compressor: comp,
		FillValue:  fill,
		Order:      "C",
	}
	if err := writeJSON(filepath.Join(dir, arrayMetaFile), meta); err != nil {
		return fmt.Errorf("failed to write array metadata: %w", err)
	}
	if a.Ndim() == 0 || a.Shape[0] == 0 {
		return nil
	}

	rowLen := a.Size() / a.Shape[0]
	rows := meta.Chunks[0]
	nchunks := (a.Shape[0] + rows - 1) / rows

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := 0; i < nchunks; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Edge chunks are padded to the full chunk shape.
			chunk := make([]T, rows*rowLen)
			lo := i * rows * rowLen
			hi := min((i+1)*rows*rowLen, len(a.Data))
			copy(chunk, a.Data[lo:hi])

			raw, err := binary.Append(nil, binary.LittleEndian, chunk)
			if err != nil {
				return err
			}
			enc, err := encodeChunk(comp, raw)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			if err := opts.Limiter.Wait(ctx, len(enc)); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(dir, chunkKey(i, a.Ndim())), enc, 0644)
		})
	}
	return g.Wait()
}

// ReadMetadata reads the .zarray file in dir.
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, arrayMetaFile))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("invalid array metadata in %s: %w", dir, err)
	}
	return &meta, nil
}

// ReadArray loads the chunked array in dir into memory obtained from backend.
// Missing chunks are left at the zero fill value.
func ReadArray[T Element](ctx context.Context, dir string, backend Backend) (ndarray.Array[T], error) {
	meta, err := ReadMetadata(dir)
	if err != nil {
		return ndarray.Array[T]{}, err
	}
	if want := dtypeOf[T](); meta.DType != want {
		return ndarray.Array[T]{}, fmt.Errorf("array %s has dtype %s, expected %s", dir, meta.DType, want)
	}
	if meta.Order != "" && meta.Order != "C" {
		return ndarray.Array[T]{}, fmt.Errorf("array %s: unsupported order %q", dir, meta.Order)
	}
	if backend == nil {
		backend = HostBackend{}
	}

	out := ndarray.Array[T]{
		Shape: slices.Clone(meta.Shape),
		Data:  allocSlice[T](backend, ndarray.Product(meta.Shape)),
	}
	if len(meta.Shape) == 0 || meta.Shape[0] == 0 {
		return out, nil
	}
	if len(meta.Chunks) != len(meta.Shape) || !slices.Equal(meta.Chunks[1:], meta.Shape[1:]) {
		return ndarray.Array[T]{}, fmt.Errorf("array %s: only first-axis chunking is supported, got chunks %v", dir, meta.Chunks)
	}

	rowLen := len(out.Data) / meta.Shape[0]
	rows := meta.Chunks[0]
	nchunks := (meta.Shape[0] + rows - 1) / rows

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := 0; i < nchunks; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			enc, err := os.ReadFile(filepath.Join(dir, chunkKey(i, len(meta.Shape))))
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			if err != nil {
				return err
			}
			raw, err := decodeChunk(meta.Compressor, enc)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}

			chunk := make([]T, rows*rowLen)
			if _, err := binary.Decode(raw, binary.LittleEndian, chunk); err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			lo := i * rows * rowLen
			hi := min((i+1)*rows*rowLen, len(out.Data))
			copy(out.Data[lo:hi], chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ndarray.Array[T]{}, err
	}
	return out, nil
}
