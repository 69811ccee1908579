// Package cluster implements the Clusterer (spec.md C5): per-type 1-D
// Gaussian Mixture Model fitting with BIC-based component selection, the
// "top-5 metric" winning-cluster rule, and confidence/quality assessment.
package cluster

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	gmmTol     = 1e-6
	gmmMaxIter = 200
	gmmSeed    = 42
	minVariance = 1e-6
)

// gmmComponent is one 1-D Gaussian component: mean, variance, and mixture
// weight.
type gmmComponent struct {
	Mean   float64
	Var    float64
	Weight float64
}

// gmmFitResult is a fitted mixture plus the responsibility matrix (n x k,
// row-major) and the log-likelihood used to compute BIC.
type gmmFitResult struct {
	Components    []gmmComponent
	Gamma         [][]float64 // Gamma[i][k]
	LogLikelihood float64
	Converged     bool
}

// fitGMM fits a k-component 1-D Gaussian mixture to x by EM with tol 1e-6
// and max_iter 200. It is deterministic without any seed: initComponents
// draws no random numbers, and gmmSeed is not consumed.
func fitGMM(x []float64, k int) gmmFitResult {
	n := len(x)
	comps := initComponents(x, k)
	gamma := make([][]float64, n)
	for i := range gamma {
		gamma[i] = make([]float64, k)
	}

	prevLL := math.Inf(-1)
	converged := false
	var ll float64

	for iter := 0; iter < gmmMaxIter; iter++ {
		ll = eStep(x, comps, gamma)
		mStep(x, gamma, comps)

		if math.Abs(ll-prevLL) < gmmTol {
			converged = true
			prevLL = ll
			break
		}
		prevLL = ll
	}

	return gmmFitResult{Components: comps, Gamma: gamma, LogLikelihood: prevLL, Converged: converged}
}

// initComponents seeds k components deterministically: means are placed at
// evenly spaced quantile positions of the sorted data (a repeatable
// stand-in for k-means++ initialization that needs no RNG), variance is the
// population variance of the whole data set (floored at minVariance),
// weights are uniform.
func initComponents(x []float64, k int) []gmmComponent {
	sorted := append([]float64(nil), x...)
	insertionSortFloat(sorted)
	n := len(sorted)

	mean, variance := meanVar(x)
	if variance < minVariance {
		variance = minVariance
	}

	comps := make([]gmmComponent, k)
	for c := 0; c < k; c++ {
		var idx int
		if k == 1 {
			idx = n / 2
		} else {
			pos := float64(c) / float64(k-1)
			idx = int(pos * float64(n-1))
		}
		comps[c] = gmmComponent{Mean: sorted[idx], Var: variance, Weight: 1.0 / float64(k)}
	}
	_ = mean
	return comps
}

// eStep computes responsibilities and returns the total log-likelihood.
func eStep(x []float64, comps []gmmComponent, gamma [][]float64) float64 {
	var ll float64
	for i, xi := range x {
		var rowSum float64
		dens := make([]float64, len(comps))
		for c, comp := range comps {
			d := distuv.Normal{Mu: comp.Mean, Sigma: math.Sqrt(comp.Var)}
			p := comp.Weight * d.Prob(xi)
			dens[c] = p
			rowSum += p
		}
		if rowSum <= 0 || math.IsNaN(rowSum) {
			// Degenerate point far from every component; assign uniformly
			// rather than propagate a NaN into the mixture.
			for c := range comps {
				gamma[i][c] = 1.0 / float64(len(comps))
			}
			continue
		}
		for c := range comps {
			gamma[i][c] = dens[c] / rowSum
		}
		ll += math.Log(rowSum)
	}
	return ll
}

// mStep updates component parameters from the current responsibilities.
func mStep(x []float64, gamma [][]float64, comps []gmmComponent) {
	k := len(comps)
	n := len(x)

	nk := make([]float64, k)
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			nk[c] += gamma[i][c]
		}
	}

	for c := 0; c < k; c++ {
		if nk[c] < 1e-9 {
			continue
		}
		var mean float64
		for i := 0; i < n; i++ {
			mean += gamma[i][c] * x[i]
		}
		mean /= nk[c]

		var variance float64
		for i := 0; i < n; i++ {
			d := x[i] - mean
			variance += gamma[i][c] * d * d
		}
		variance /= nk[c]
		if variance < minVariance {
			variance = minVariance
		}

		comps[c].Mean = mean
		comps[c].Var = variance
		comps[c].Weight = nk[c] / float64(n)
	}
}

// bic computes the Bayesian information criterion for a fitted mixture:
// -2*logL + numParams*log(n), with 3 free parameters (mean, variance,
// weight) per component.
func bic(fit gmmFitResult, n int) float64 {
	numParams := float64(3 * len(fit.Components))
	return -2*fit.LogLikelihood + numParams*math.Log(float64(n))
}

// fitBestGMM fits k=1..maxK and returns the fit minimizing BIC, per spec.md
// §4.5 step 1b.
func fitBestGMM(x []float64, maxK int) (gmmFitResult, int) {
	if maxK < 1 {
		maxK = 1
	}
	if maxK > len(x) {
		maxK = len(x)
	}

	bestK := 1
	best := fitGMM(x, 1)
	bestBIC := bic(best, len(x))

	for k := 2; k <= maxK; k++ {
		fit := fitGMM(x, k)
		b := bic(fit, len(x))
		if b < bestBIC {
			bestBIC = b
			best = fit
			bestK = k
		}
	}
	return best, bestK
}

func meanVar(x []float64) (mean, variance float64) {
	n := float64(len(x))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean = sum / n
	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	variance = ss / n
	return mean, variance
}

func insertionSortFloat(xs []float64) {
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for j >= 0 && xs[j] > v {
			xs[j+1] = xs[j]
			j--
		}
		xs[j+1] = v
	}
}
