// Package arraystore persists prepared IDFT inputs as a zarr-v2 style group
// on disk: one sub-group "ms_<index>" per partition holding the x, y, uvw,
// visibilities and weights arrays, each split into compressed chunks.
package arraystore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"idftprep/internal/models"
	"idftprep/pkg/ndarray"
)

var (
	// ErrExists is returned by Save when the target already holds data and
	// overwriting is disabled.
	ErrExists = errors.New("array group already exists")

	// ErrNotGroup is returned by Load when the path is not an array group.
	ErrNotGroup = errors.New("not an array group")
)

const partitionPrefix = "ms_"

// Options configures a Store.
type Options struct {
	// Overwrite replaces an existing group on Save.
	Overwrite bool

	// Compressor is "zstd", "lz4" or "none".
	Compressor string

	// Level is the zstd compression level.
	Level int

	// ChunkRows is the chunk length along the first axis of every array.
	ChunkRows int

	// Backend decides where loaded arrays live. Nil selects HostBackend.
	Backend Backend

	// Workers bounds how many partitions are written or read at once.
	Workers int

	// IOLimitBytesPerSec caps the write rate of Save. Zero means unlimited.
	IOLimitBytesPerSec int
}

// Store is an array group rooted at a directory.
type Store struct {
	root    string
	opts    Options
	limiter *IOLimiter
}

// Open returns a store rooted at root. Nothing is touched on disk until Save
// or Load is called.
func Open(root string, opts Options) *Store {
	if opts.Backend == nil {
		opts.Backend = HostBackend{}
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	return &Store{root: root, opts: opts, limiter: NewIOLimiter(opts.IOLimitBytesPerSec)}
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// PartitionGroupName returns the sub-group name used for partition index.
func PartitionGroupName(index int) string {
	return partitionPrefix + strconv.Itoa(index)
}

func (s *Store) arrayOptions() ArrayOptions {
	return ArrayOptions{
		Compressor: s.opts.Compressor,
		Level:      s.opts.Level,
		ChunkRows:  s.opts.ChunkRows,
		Limiter:    s.limiter,
	}
}

// Save writes inputs to the store. With Overwrite unset an existing,
// non-empty target is an error wrapping ErrExists.
func (s *Store) Save(ctx context.Context, inputs models.IDFTInputs) error {
	for index := range inputs {
		if index < 0 {
			return fmt.Errorf("negative partition index %d", index)
		}
	}
	if err := s.prepareRoot(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for index, rec := range inputs {
		g.Go(func() error {
			dir := filepath.Join(s.root, PartitionGroupName(index))
			if err := s.writeRecord(ctx, dir, rec); err != nil {
				return fmt.Errorf("failed to write %s: %w", PartitionGroupName(index), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Store) prepareRoot() error {
	entries, err := os.ReadDir(s.root)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to inspect %s: %w", s.root, err)
	case len(entries) > 0:
		if !s.opts.Overwrite {
			return fmt.Errorf("%s: %w", s.root, ErrExists)
		}
		if err := os.RemoveAll(s.root); err != nil {
			return fmt.Errorf("failed to remove existing group: %w", err)
		}
	}
	return writeGroupMeta(s.root)
}

func (s *Store) writeRecord(ctx context.Context, dir string, rec *models.IDFTInput) error {
	if err := writeGroupMeta(dir); err != nil {
		return err
	}
	opts := s.arrayOptions()

	x, err := ndarray.FromSlice(rec.X, len(rec.X))
	if err != nil {
		return err
	}
	y, err := ndarray.FromSlice(rec.Y, len(rec.Y))
	if err != nil {
		return err
	}

	if err := WriteArray(ctx, filepath.Join(dir, models.ArrayX), x, opts); err != nil {
		return err
	}
	if err := WriteArray(ctx, filepath.Join(dir, models.ArrayY), y, opts); err != nil {
		return err
	}
	if err := WriteArray(ctx, filepath.Join(dir, models.ArrayUVW), rec.UVW, opts); err != nil {
		return err
	}
	if err := WriteArray(ctx, filepath.Join(dir, models.ArrayVisibilities), rec.Visibilities, opts); err != nil {
		return err
	}
	return WriteArray(ctx, filepath.Join(dir, models.ArrayWeights), rec.Weights, opts)
}

// Partitions lists the partition indices present in the store, ascending.
func (s *Store) Partitions() ([]int, error) {
	if !isGroup(s.root) {
		return nil, fmt.Errorf("%s: %w", s.root, ErrNotGroup)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var indices []int
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), partitionPrefix) {
			continue
		}
		index, err := strconv.Atoi(strings.TrimPrefix(e.Name(), partitionPrefix))
		if err != nil || index < 0 {
			continue
		}
		indices = append(indices, index)
	}
	sort.Ints(indices)
	return indices, nil
}

// Load reads every partition group into memory allocated by the configured
// backend.
func (s *Store) Load(ctx context.Context) (models.IDFTInputs, error) {
	indices, err := s.Partitions()
	if err != nil {
		return nil, err
	}

	out := make(models.IDFTInputs, len(indices))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, index := range indices {
		g.Go(func() error {
			rec, err := s.readRecord(ctx, filepath.Join(s.root, PartitionGroupName(index)))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", PartitionGroupName(index), err)
			}
			mu.Lock()
			out[index] = rec
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) readRecord(ctx context.Context, dir string) (*models.IDFTInput, error) {
	b := s.opts.Backend

	x, err := ReadArray[float32](ctx, filepath.Join(dir, models.ArrayX), b)
	if err != nil {
		return nil, err
	}
	y, err := ReadArray[float32](ctx, filepath.Join(dir, models.ArrayY), b)
	if err != nil {
		return nil, err
	}
	uvw, err := ReadArray[float64](ctx, filepath.Join(dir, models.ArrayUVW), b)
	if err != nil {
		return nil, err
	}
	vis, err := ReadArray[complex64](ctx, filepath.Join(dir, models.ArrayVisibilities), b)
	if err != nil {
		return nil, err
	}
	weights, err := ReadArray[float32](ctx, filepath.Join(dir, models.ArrayWeights), b)
	if err != nil {
		return nil, err
	}

	return &models.IDFTInput{
		X:            x.Data,
		Y:            y.Data,
		UVW:          uvw,
		Visibilities: vis,
		Weights:      weights,
	}, nil
}
