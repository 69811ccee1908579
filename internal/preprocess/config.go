package preprocess

// WavelengthMask is an inclusive [Min, Max] Å range to drop.
type WavelengthMask struct {
	Min, Max float64
}

// ContinuumMethod selects the continuum model used to flatten a spectrum.
type ContinuumMethod string

const (
	ContinuumSpline   ContinuumMethod = "spline"
	ContinuumGaussian ContinuumMethod = "gaussian"
)

// ContinuumConfig configures continuum removal (spec.md §4.2).
type ContinuumConfig struct {
	Method  ContinuumMethod
	KnotNum int     // spline: number of knots, default 13
	Sigma   float64 // gaussian: 0 means "auto"
}

// Config holds every preprocessing option from spec.md §4.2. Zero value
// means "skip" for every optional step except log rebinning, which always
// runs, and the host-emission clip, which only a negative EmclipZ disables
// (a zero EmclipZ clips at z=0). DefaultConfig turns ApodizePercent and
// ScaleToMean on and disables the host-emission clip.
type Config struct {
	SavgolWindow int     // pixel-unit SG window; 0 disables
	SavgolFWHM   float64 // Å-unit SG window; 0 disables; explicit window wins over this
	SavgolOrder  int     // polynomial order, default 3

	ABandRemove bool
	SkyClip     bool

	EmclipZ float64 // -1 disables
	Emwidth float64 // Å, default 40

	WavelengthMasks []WavelengthMask

	ApodizePercent float64 // 0-50, default 10

	Continuum ContinuumConfig

	ScaleToMean bool // default true

	// ForcedRedshift, when non-nil, is recorded in the trace only; it does
	// not change any preprocessing step, including the host-line clip.
	ForcedRedshift *float64
}

// DefaultConfig matches the CLI defaults in spec.md §6.
func DefaultConfig() Config {
	return Config{
		SavgolOrder:     3,
		EmclipZ:         -1,
		Emwidth:         40,
		ApodizePercent:  10,
		ScaleToMean:     true,
		Continuum:       ContinuumConfig{Method: ContinuumSpline, KnotNum: 13},
	}
}
