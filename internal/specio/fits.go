package specio

import (
	"fmt"
	"os"
	"strings"

	"github.com/astrogo/fits"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

// ReadFITS loads a 1-D or 2-D (wavelength, flux) spectrum from a FITS file
// via astrogo/fits. Wavelengths always come from the WCS-style linear header
// (CRVAL1/CDELT1/CRPIX1). For a 1-D primary HDU the image is the flux array;
// for a 2-D image the first NAXIS1 values (the first row) are taken as flux,
// and no wavelength axis is read from the image data. A CUNIT1 header of
// "nm" triggers the x10 Å conversion, per spec.md §4.7.
func ReadFITS(path string) (snidtypes.RawSpectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return snidtypes.RawSpectrum{}, fmt.Errorf("%w: opening %s: %v", snidtypes.ErrIOFailure, path, err)
	}
	defer f.Close()

	r, err := fits.Open(f)
	if err != nil {
		return snidtypes.RawSpectrum{}, fmt.Errorf("%w: parsing %s: %v", snidtypes.ErrIOFailure, path, err)
	}
	defer r.Close()

	if len(r.HDUs()) == 0 {
		return snidtypes.RawSpectrum{}, fmt.Errorf("%w: no HDUs in %s", snidtypes.ErrInvalidSpectrum, path)
	}
	img, ok := r.HDUs()[0].(fits.Image)
	if !ok {
		return snidtypes.RawSpectrum{}, fmt.Errorf("%w: primary HDU is not an image in %s", snidtypes.ErrInvalidSpectrum, path)
	}

	axes := img.Axes()
	hdr := img.Header()

	var rawFlux []float64
	switch {
	case len(axes) == 1:
		rawFlux = readFloats(img, axes[0])
	case len(axes) >= 2:
		rawFlux = readFloats(img, axes[0])
	default:
		return snidtypes.RawSpectrum{}, fmt.Errorf("%w: unsupported axis count in %s", snidtypes.ErrInvalidSpectrum, path)
	}
	if len(rawFlux) == 0 {
		return snidtypes.RawSpectrum{}, fmt.Errorf("%w: empty image data in %s", snidtypes.ErrInvalidSpectrum, path)
	}

	crval1 := headerFloat(hdr, "CRVAL1", 0)
	cdelt1 := headerFloat(hdr, "CDELT1", 1)
	crpix1 := headerFloat(hdr, "CRPIX1", 1)
	unit := strings.ToLower(headerString(hdr, "CUNIT1", "angstrom"))

	n := len(rawFlux)
	wave := make([]float64, n)
	flux := make([]float64, 0, n)
	cleanWave := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		w := crval1 + (float64(i+1)-crpix1)*cdelt1
		if strings.HasPrefix(unit, "nm") {
			w *= 10
		}
		wave[i] = w
		if isFinite(w) && isFinite(rawFlux[i]) {
			cleanWave = append(cleanWave, w)
			flux = append(flux, rawFlux[i])
		}
	}
	if len(cleanWave) < 10 {
		return snidtypes.RawSpectrum{}, fmt.Errorf("%w: fewer than 10 finite samples in %s", snidtypes.ErrInvalidSpectrum, path)
	}

	return snidtypes.RawSpectrum{Wave: cleanWave, Flux: flux}, nil
}

func readFloats(img fits.Image, n int) []float64 {
	out := make([]float64, n)
	switch data := img.(type) {
	case interface{ Data() []float64 }:
		copy(out, data.Data())
	case interface{ Data() []float32 }:
		for i, v := range data.Data() {
			out[i] = float64(v)
		}
	}
	return out
}

func headerFloat(hdr fits.Header, key string, fallback float64) float64 {
	c := hdr.Get(key)
	if c == nil {
		return fallback
	}
	if v, ok := c.Value.(float64); ok {
		return v
	}
	return fallback
}

func headerString(hdr fits.Header, key, fallback string) string {
	c := hdr.Get(key)
	if c == nil {
		return fallback
	}
	if v, ok := c.Value.(string); ok {
		return v
	}
	return fallback
}
