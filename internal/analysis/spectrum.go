package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

var ErrShortSeries = errors.New("series too short for analysis")

// MinSamples is the shortest series ComputeSpectrum accepts.
const MinSamples = 8

type Spectrum struct {
	// Freqs[i] is the frequency in Hz of Amplitude[i].
	Freqs     []float64
	Amplitude []float64
	// Resolution is the bin width in Hz.
	Resolution float64
}

// ComputeSpectrum returns the one-sided amplitude spectrum of samples
// taken every dt seconds. The mean is removed and a Hann window applied
// before the transform.
func ComputeSpectrum(samples []float64, dt float64) (*Spectrum, error) {
	n := len(samples)
	if n < MinSamples || !(dt > 0) {
		return nil, ErrShortSeries
	}

	x := make([]float64, n)
	var mean float64
	for _, v := range samples {
		mean += v
	}
	mean /= float64(n)
	for i, v := range samples {
		x[i] = v - mean
	}
	window.Apply(x, window.Hann)

	coeffs := fft.FFTReal(x)
	bins := n/2 + 1
	s := &Spectrum{
		Freqs:      make([]float64, bins),
		Amplitude:  make([]float64, bins),
		Resolution: 1 / (float64(n) * dt),
	}
	for k := 0; k < bins; k++ {
		s.Freqs[k] = float64(k) * s.Resolution
		// Hann has coherent gain 1/2; the one-sided spectrum doubles.
		s.Amplitude[k] = 4 * cmplx.Abs(coeffs[k]) / float64(n)
	}
	s.Amplitude[0] = 0
	return s, nil
}

// Peak returns the frequency and amplitude of the strongest non-DC bin.
func (s *Spectrum) Peak() (freq, amp float64) {
	best := 0
	for k := 1; k < len(s.Amplitude); k++ {
		if best == 0 || s.Amplitude[k] > s.Amplitude[best] {
			best = k
		}
	}
	return s.Freqs[best], s.Amplitude[best]
}

// At returns the amplitude of the bin closest to freq.
func (s *Spectrum) At(freq float64) float64 {
	k := int(math.Round(freq / s.Resolution))
	if k < 0 || k >= len(s.Amplitude) {
		return 0
	}
	return s.Amplitude[k]
}

type DriverResponse struct {
	Peak       float64
	PeakAmp    float64
	DriverAmp  float64
	Resolution float64
	// Swing is half the peak-to-peak range of the second half of the
	// series, once transients have mostly died out.
	Swing float64
}

// Response analyses a driven series. driverFreq may be zero, in which case
// DriverAmp is zero.
func Response(samples []float64, dt, driverFreq float64) (*DriverResponse, error) {
	s, err := ComputeSpectrum(samples, dt)
	if err != nil {
		return nil, err
	}
	r := &DriverResponse{Resolution: s.Resolution}
	r.Peak, r.PeakAmp = s.Peak()
	if driverFreq > 0 {
		r.DriverAmp = s.At(driverFreq)
	}
	tail := samples[len(samples)/2:]
	lo, hi := tail[0], tail[0]
	for _, v := range tail {
		lo, hi = min(lo, v), max(hi, v)
	}
	r.Swing = (hi - lo) / 2
	return r, nil
}
