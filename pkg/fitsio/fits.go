// Package fitsio writes and reads the reference image as a single-HDU FITS
// file on top of github.com/astrogo/fitsio. Only what the pipeline needs is
// supported: a primary 2-D image of BITPIX -64 (or -32 on read) with numeric
// header cards such as CDELT1/CDELT2.
package fitsio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	astrofits "github.com/astrogo/fitsio"

	"idftprep/internal/models"
	"idftprep/pkg/imaging"
	"idftprep/pkg/units"
)

// ErrFormat reports a file that is not a supported FITS image.
var ErrFormat = errors.New("unsupported FITS content")

// reserved keys are written by the library or by WriteImage itself and are
// skipped from Attrs.
var reserved = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true, "NAXIS2": true,
	"EXTEND": true, "END": true, "CRPIX1": true, "CRPIX2": true, "BUNIT": true,
}

// Header holds the numeric and string cards of a primary HDU.
type Header struct {
	Numbers map[string]float64
	Strings map[string]string
}

// WriteImage writes img as a primary HDU. CDELT1 and CDELT2 carry the
// cellsize in degrees; every other attribute becomes a numeric card.
func WriteImage(w io.Writer, img *models.Image) error {
	f, err := astrofits.Create(w)
	if err != nil {
		return fmt.Errorf("failed to create FITS stream: %w", err)
	}

	hdu := astrofits.NewImage(-64, []int{img.Size, img.Size})
	defer hdu.Close()

	cards := []astrofits.Card{
		{Name: "CRPIX1", Value: img.Size/2 + 1},
		{Name: "CRPIX2", Value: img.Size/2 + 1},
		{Name: "BUNIT", Value: "JY/PIXEL"},
	}

	attrs := map[string]float64{
		"CDELT1": img.Cellsize[0].Degrees(),
		"CDELT2": img.Cellsize[1].Degrees(),
	}
	for k, v := range img.Attrs {
		attrs[k] = v
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if !reserved[k] && len(k) <= 8 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		cards = append(cards, astrofits.Card{Name: k, Value: attrs[k]})
	}
	if err := hdu.Header().Append(cards...); err != nil {
		return fmt.Errorf("failed to build FITS header: %w", err)
	}

	pix := append([]float64(nil), img.Data...)
	if err := hdu.Write(&pix); err != nil {
		return fmt.Errorf("failed to encode pixels: %w", err)
	}
	if err := f.Write(hdu); err != nil {
		return fmt.Errorf("failed to write primary HDU: %w", err)
	}
	return f.Close()
}

// WriteImageFile writes img to path, replacing any existing file.
func WriteImageFile(path string, img *models.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := WriteImage(bw, img); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// headerOf splits the cards of hdr into numbers and strings. Logical cards
// are stored as 1 or 0.
func headerOf(hdr *astrofits.Header) *Header {
	h := &Header{Numbers: map[string]float64{}, Strings: map[string]string{}}
	for _, key := range hdr.Keys() {
		c := hdr.Get(key)
		if c == nil {
			continue
		}
		switch v := c.Value.(type) {
		case float64:
			h.Numbers[key] = v
		case float32:
			h.Numbers[key] = float64(v)
		case int:
			h.Numbers[key] = float64(v)
		case int64:
			h.Numbers[key] = float64(v)
		case bool:
			if v {
				h.Numbers[key] = 1
			} else {
				h.Numbers[key] = 0
			}
		case string:
			h.Strings[key] = v
		}
	}
	return h
}

// ReadImage reads a square 2-D primary image. The cellsize is rebuilt from
// CDELT1/CDELT2 and every other numeric card is kept in Attrs.
func ReadImage(r io.Reader) (*models.Image, *Header, error) {
	f, err := astrofits.Open(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	defer f.Close()

	if len(f.HDUs()) == 0 {
		return nil, nil, fmt.Errorf("%w: no HDU", ErrFormat)
	}
	primary, ok := f.HDU(0).(astrofits.Image)
	if !ok {
		return nil, nil, fmt.Errorf("%w: primary HDU is not an image", ErrFormat)
	}

	hdr := primary.Header()
	axes := hdr.Axes()
	if len(axes) != 2 {
		return nil, nil, fmt.Errorf("%w: NAXIS=%d", ErrFormat, len(axes))
	}
	n1, n2 := axes[0], axes[1]
	if n1 != n2 || n1 <= 0 {
		return nil, nil, fmt.Errorf("%w: image is %dx%d, expected square", ErrFormat, n1, n2)
	}

	h := headerOf(hdr)
	cdelt1, ok1 := h.Numbers["CDELT1"]
	cdelt2, ok2 := h.Numbers["CDELT2"]
	if !ok1 || !ok2 {
		return nil, nil, fmt.Errorf("%w: missing CDELT1/CDELT2", ErrFormat)
	}

	img := imaging.NewImageXY([2]units.Angle{
		units.Angle(cdelt1) * units.Degree,
		units.Angle(cdelt2) * units.Degree,
	}, n1)

	switch hdr.Bitpix() {
	case -64:
		pix := make([]float64, len(img.Data))
		if err := primary.Read(&pix); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		copy(img.Data, pix)
	case -32:
		pix := make([]float32, len(img.Data))
		if err := primary.Read(&pix); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		for i, v := range pix {
			img.Data[i] = float64(v)
		}
	default:
		return nil, nil, fmt.Errorf("%w: BITPIX=%d", ErrFormat, hdr.Bitpix())
	}

	for k, v := range h.Numbers {
		if !reserved[k] {
			img.Attrs[k] = v
		}
	}
	return img, h, nil
}

// ReadImageFile reads the image stored at path.
func ReadImageFile(path string) (*models.Image, *Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadImage(bufio.NewReader(f))
}
