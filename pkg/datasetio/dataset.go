// Package datasetio reads and writes interferometric datasets in a native
// directory format: a dataset.yaml descriptor holding the lookup tables and
// partition layout, plus one chunked array per partition column.
package datasetio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"idftprep/internal/models"
	"idftprep/pkg/arraystore"
	"idftprep/pkg/ndarray"
	"idftprep/pkg/units"
)

const descriptorFile = "dataset.yaml"

// Column names of a partition on disk.
const (
	ColumnData          = "data"
	ColumnModel         = "model"
	ColumnFlag          = "flag"
	ColumnImagingWeight = "imaging_weight"
	ColumnUVW           = "uvw"
)

type partitionDescriptor struct {
	FieldID        int  `yaml:"fieldId"`
	SpwID          int  `yaml:"spwId"`
	PolarizationID int  `yaml:"polarizationId"`
	Rows           int  `yaml:"rows"`
	Channels       int  `yaml:"channels"`
	Correlations   int  `yaml:"correlations"`
	HasModel       bool `yaml:"hasModel"`
}

type descriptor struct {
	TheoResolutionArcsec float64                 `yaml:"theoResolutionArcsec,omitempty"`
	Fields               []models.Field          `yaml:"fields"`
	SpectralWindows      []models.SpectralWindow `yaml:"spectralWindows"`
	Polarizations        []models.Polarization   `yaml:"polarizations"`
	Partitions           []partitionDescriptor   `yaml:"partitions"`
}

// WriteOptions controls how a dataset is written.
type WriteOptions struct {
	Overwrite bool
	Arrays    arraystore.ArrayOptions
}

func partitionDir(dir string, index int) string {
	return filepath.Join(dir, "partitions", strconv.Itoa(index))
}

// Write stores ds under dir.
func Write(ctx context.Context, dir string, ds *models.Dataset, opts WriteOptions) error {
	if _, err := os.Stat(filepath.Join(dir, descriptorFile)); err == nil {
		if !opts.Overwrite {
			return fmt.Errorf("dataset %s: %w", dir, arraystore.ErrExists)
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove existing dataset: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}

	desc := descriptor{
		TheoResolutionArcsec: ds.TheoResolution.Arcseconds(),
		Fields:               ds.Fields,
		SpectralWindows:      ds.SpectralWindows,
		Polarizations:        ds.Polarizations,
	}
	for i, p := range ds.Partitions {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("partition %d: %w", i, err)
		}
		desc.Partitions = append(desc.Partitions, partitionDescriptor{
			FieldID:        p.FieldID,
			SpwID:          p.SpwID,
			PolarizationID: p.PolarizationID,
			Rows:           p.Rows,
			Channels:       p.Channels,
			Correlations:   p.Correlations,
			HasModel:       p.HasModel(),
		})
		if err := writePartition(ctx, partitionDir(dir, i), p, opts.Arrays); err != nil {
			return fmt.Errorf("partition %d: %w", i, err)
		}
	}

	data, err := yaml.Marshal(&desc)
	if err != nil {
		return fmt.Errorf("failed to encode dataset descriptor: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, descriptorFile), data, 0644)
}

func writePartition(ctx context.Context, dir string, p *models.Partition, opts arraystore.ArrayOptions) error {
	shape := p.VisibilityShape()

	data, err := ndarray.FromSlice(p.Data, shape...)
	if err != nil {
		return err
	}
	if err := arraystore.WriteArray(ctx, filepath.Join(dir, ColumnData), data, opts); err != nil {
		return err
	}

	if p.HasModel() {
		model, err := ndarray.FromSlice(p.Model, shape...)
		if err != nil {
			return err
		}
		if err := arraystore.WriteArray(ctx, filepath.Join(dir, ColumnModel), model, opts); err != nil {
			return err
		}
	}

	flag, err := ndarray.FromSlice(p.Flag, shape...)
	if err != nil {
		return err
	}
	if err := arraystore.WriteArray(ctx, filepath.Join(dir, ColumnFlag), flag, opts); err != nil {
		return err
	}

	weight, err := ndarray.FromSlice(p.ImagingWeight, p.Rows, p.Correlations)
	if err != nil {
		return err
	}
	if err := arraystore.WriteArray(ctx, filepath.Join(dir, ColumnImagingWeight), weight, opts); err != nil {
		return err
	}

	uvw, err := ndarray.FromSlice(p.UVW, p.Rows, 3)
	if err != nil {
		return err
	}
	return arraystore.WriteArray(ctx, filepath.Join(dir, ColumnUVW), uvw, opts)
}

// Read loads the dataset stored under dir.
func Read(ctx context.Context, dir string, backend arraystore.Backend) (*models.Dataset, error) {
	raw, err := os.ReadFile(filepath.Join(dir, descriptorFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s is not a dataset: %w", dir, err)
		}
		return nil, err
	}

	var desc descriptor
	if err := yaml.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse dataset descriptor: %w", err)
	}

	ds := &models.Dataset{
		Fields:          desc.Fields,
		SpectralWindows: desc.SpectralWindows,
		Polarizations:   desc.Polarizations,
		TheoResolution:  units.Angle(desc.TheoResolutionArcsec) * units.Arcsecond,
	}
	if err := ds.CheckTables(); err != nil {
		return nil, fmt.Errorf("invalid dataset descriptor: %w", err)
	}
	for i, pd := range desc.Partitions {
		p, err := readPartition(ctx, partitionDir(dir, i), pd, backend)
		if err != nil {
			return nil, fmt.Errorf("partition %d: %w", i, err)
		}
		ds.Partitions = append(ds.Partitions, p)
	}
	return ds, nil
}

func readPartition(ctx context.Context, dir string, pd partitionDescriptor, backend arraystore.Backend) (*models.Partition, error) {
	p := &models.Partition{
		FieldID:        pd.FieldID,
		SpwID:          pd.SpwID,
		PolarizationID: pd.PolarizationID,
		Rows:           pd.Rows,
		Channels:       pd.Channels,
		Correlations:   pd.Correlations,
	}
	shape := p.VisibilityShape()

	data, err := arraystore.ReadArray[complex64](ctx, filepath.Join(dir, ColumnData), backend)
	if err != nil {
		return nil, err
	}
	if !ndarray.SameShape(data.Shape, shape) {
		return nil, fmt.Errorf("data has shape %v, descriptor says %v", data.Shape, shape)
	}
	p.Data = data.Data

	if pd.HasModel {
		model, err := arraystore.ReadArray[complex64](ctx, filepath.Join(dir, ColumnModel), backend)
		if err != nil {
			return nil, err
		}
		p.Model = model.Data
	}

	flag, err := arraystore.ReadArray[bool](ctx, filepath.Join(dir, ColumnFlag), backend)
	if err != nil {
		return nil, err
	}
	p.Flag = flag.Data

	weight, err := arraystore.ReadArray[float32](ctx, filepath.Join(dir, ColumnImagingWeight), backend)
	if err != nil {
		return nil, err
	}
	p.ImagingWeight = weight.Data

	uvw, err := arraystore.ReadArray[float64](ctx, filepath.Join(dir, ColumnUVW), backend)
	if err != nil {
		return nil, err
	}
	p.UVW = uvw.Data

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
