package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrum returns |X_k| for k = 0..n/2 of a complex grid line. Any length
// is accepted.
func Spectrum(line []complex128) []float64 {
	if len(line) == 0 {
		return nil
	}
	return magnitudes(fft.FFT(line))
}

// PowerSpectrum is Spectrum for a real-valued line.
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	return magnitudes(fft.FFTReal(data))
}

func magnitudes(x []complex128) []float64 {
	ps := make([]float64, len(x)/2+1)
	for i := range ps {
		ps[i] = cmplx.Abs(x[i])
	}
	return ps
}

// DominantMode is the index of the largest non-constant mode, or 0 when the
// spectrum has none.
func DominantMode(spectrum []float64) int {
	best := 0
	for k := 1; k < len(spectrum); k++ {
		if spectrum[k] > spectrum[best] || best == 0 {
			best = k
		}
	}
	return best
}
