package preprocess

import "math"

// apodize applies a raised-cosine (Tukey-style) taper to the edges of the
// active [leftEdge,rightEdge] range, per spec.md §4.2's apodization step.
// percent is the fraction of the active range (0-100) tapered at each end.
// Bins outside the active range are left at zero; flat is never mutated, the
// taper is written into a fresh slice so callers retain the untapered
// flattened flux for diagnostics.
func apodize(flat []float64, leftEdge, rightEdge int, percent float64) []float64 {
	out := append([]float64(nil), flat...)
	if percent <= 0 || rightEdge <= leftEdge {
		return out
	}

	span := rightEdge - leftEdge + 1
	taperLen := int(float64(span) * percent / 100.0)
	if taperLen < 1 {
		return out
	}
	if 2*taperLen > span {
		taperLen = span / 2
	}
	if taperLen < 1 {
		return out
	}

	for k := 0; k < taperLen; k++ {
		w := 0.5 * (1 - math.Cos(math.Pi*float64(k)/float64(taperLen)))
		li := leftEdge + k
		ri := rightEdge - k
		if li >= 0 && li < len(out) {
			out[li] *= w
		}
		if ri >= 0 && ri < len(out) && ri != li {
			out[ri] *= w
		}
	}
	return out
}

// activeEdges returns the first and last bin index with non-zero flat flux,
// used to recompute left_edge/right_edge after rebinning/continuum-fitting
// collapse bins at the ends of the grid to zero.
func activeEdges(flat []float64) (left, right int) {
	left, right = -1, -1
	for i, v := range flat {
		if v != 0 {
			if left == -1 {
				left = i
			}
			right = i
		}
	}
	return left, right
}
