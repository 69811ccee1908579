package preprocess

// clipRange drops samples whose wavelength falls within [a,b], returning new
// slices (the teacher's style of building filtered copies rather than
// mutating in place, as in algo-piano's knob/param cloning helpers).
func clipRange(wave, flux []float64, a, b float64) ([]float64, []float64) {
	if len(wave) == 0 {
		return wave, flux
	}
	outW := make([]float64, 0, len(wave))
	outF := make([]float64, 0, len(flux))
	for i, w := range wave {
		if w >= a && w <= b {
			continue
		}
		outW = append(outW, w)
		outF = append(outF, flux[i])
	}
	return outW, outF
}

// clipABand removes the 7575-7675 Å telluric A-band.
func clipABand(wave, flux []float64) ([]float64, []float64) {
	return clipRange(wave, flux, 7575.0, 7675.0)
}

// skyLines are the fixed sky-emission wavelengths clipped by skyclip.
var skyLines = []float64{5577.0, 6300.2, 6364.0}

// clipSkyLines removes samples within +/-width Å of each sky line.
func clipSkyLines(wave, flux []float64, width float64) ([]float64, []float64) {
	for _, l := range skyLines {
		wave, flux = clipRange(wave, flux, l-width, l+width)
	}
	return wave, flux
}

// hostEmissionLines are fixed galaxy rest-frame emission lines (Å).
var hostEmissionLines = []float64{
	3727.3, 4861.3, 4958.9, 5006.8,
	6548.1, 6562.8, 6583.6, 6716.4, 6730.8,
}

// clipHostEmissionLines removes samples within +/-width Å of each host
// emission line, redshifted by z. z < 0 disables the clip.
func clipHostEmissionLines(wave, flux []float64, z, width float64) ([]float64, []float64) {
	if z < 0 {
		return wave, flux
	}
	for _, l := range hostEmissionLines {
		shifted := l * (1 + z)
		wave, flux = clipRange(wave, flux, shifted-width, shifted+width)
	}
	return wave, flux
}

// applyWavelengthMasks removes samples inside each [a,b] mask range.
func applyWavelengthMasks(wave, flux []float64, masks []WavelengthMask) ([]float64, []float64) {
	for _, m := range masks {
		wave, flux = clipRange(wave, flux, m.Min, m.Max)
	}
	return wave, flux
}
