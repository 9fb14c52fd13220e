// Package drive moves boundary particles along scripted trajectories.
package drive

import "math"

const (
	DefaultAmplitude = 0.20
	DefaultFrequency = 1.0
)

// Oscillator drives one particle vertically along a sine wave.
type Oscillator struct {
	Enabled   bool    `yaml:"enabled"`
	Amplitude float32 `yaml:"amplitude"`
	Frequency float32 `yaml:"frequency"`
	YOffset   float32 `yaml:"y_offset"`
}

func Default() Oscillator {
	return Oscillator{Enabled: true, Amplitude: DefaultAmplitude, Frequency: DefaultFrequency}
}

// Omega is the angular frequency 2πf.
func (o Oscillator) Omega() float32 {
	return 2 * math.Pi * o.Frequency
}

// Phase wraps t into one period in float64 and narrows the result, so the
// float32 product omega*t stays accurate over long runs.
func (o Oscillator) Phase(t float64) float32 {
	if o.Frequency <= 0 {
		return 0
	}
	period := 1 / float64(o.Frequency)
	w := math.Mod(t, period)
	if w < 0 {
		w += period
	}
	return float32(w)
}

// Height returns the driven y coordinate at time t.
func (o Oscillator) Height(t float64) float32 {
	return Height(o.YOffset, o.Amplitude, o.Omega(), o.Phase(t))
}

// Height evaluates yOffset + amp*sin(omega*t). Both solver backends use it so
// they place the driven particle identically.
func Height(yOffset, amp, omega, t float32) float32 {
	return yOffset + amp*float32(math.Sin(float64(omega*t)))
}
