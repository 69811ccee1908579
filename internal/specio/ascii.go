// Package specio implements the reading half of the IO component (spec.md
// C7): input spectra from ASCII/lnw/FITS files. Result artifacts are written
// by package report.
package specio

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

// ReadASCII parses a two-column (wavelength, flux, optional error) text
// file, accepting whitespace or comma separation and "lnw"-style comment
// headers (lines beginning with '#' are ignored). Non-finite rows are
// dropped per spec.md §4.7. nmToAngstrom multiplies wavelengths by 10 when
// the caller has already determined the file uses nanometers.
func ReadASCII(path string, nmToAngstrom bool) (snidtypes.RawSpectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return snidtypes.RawSpectrum{}, fmt.Errorf("%w: opening %s: %v", snidtypes.ErrIOFailure, path, err)
	}
	defer f.Close()

	var wave, flux, errs []float64
	hasErr := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.ReplaceAll(line, ",", " ")
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		w, err1 := strconv.ParseFloat(fields[0], 64)
		fl, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if !isFinite(w) || !isFinite(fl) {
			continue
		}
		var e float64
		if len(fields) >= 3 {
			if v, err := strconv.ParseFloat(fields[2], 64); err == nil && isFinite(v) {
				e = v
				hasErr = true
			}
		}
		if nmToAngstrom {
			w *= 10
		}
		wave = append(wave, w)
		flux = append(flux, fl)
		errs = append(errs, e)
	}
	if err := scanner.Err(); err != nil {
		return snidtypes.RawSpectrum{}, fmt.Errorf("%w: reading %s: %v", snidtypes.ErrIOFailure, path, err)
	}
	if len(wave) < 10 {
		return snidtypes.RawSpectrum{}, fmt.Errorf("%w: fewer than 10 finite samples in %s", snidtypes.ErrInvalidSpectrum, path)
	}

	raw := snidtypes.RawSpectrum{Wave: wave, Flux: flux}
	if hasErr {
		raw.Err = errs
	}
	return raw, nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
