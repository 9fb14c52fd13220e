package analysis

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func sine(n int, dt, freq, amp float64) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = 0.3 + amp*math.Sin(2*math.Pi*freq*float64(i)*dt)
	}
	return xs
}

func TestSpectrumFindsSine(t *testing.T) {
	tests := []struct {
		name string
		freq float64
		amp  float64
	}{
		{"slow", 1, 0.2},
		{"fast", 4, 0.05},
	}
	const dt = 1.0 / 60
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ComputeSpectrum(sine(600, dt, tt.freq, tt.amp), dt)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(s.Resolution-0.1) > 1e-12 {
				t.Errorf("resolution = %v, want 0.1", s.Resolution)
			}
			f, a := s.Peak()
			if math.Abs(f-tt.freq) > s.Resolution {
				t.Errorf("peak at %v Hz, want %v", f, tt.freq)
			}
			if math.Abs(a-tt.amp) > 0.1*tt.amp {
				t.Errorf("peak amplitude %v, want ~%v", a, tt.amp)
			}
			if s.Amplitude[0] != 0 {
				t.Error("DC bin not removed")
			}
		})
	}
}

func TestSpectrumRejectsShortSeries(t *testing.T) {
	if _, err := ComputeSpectrum([]float64{1, 2, 3}, 0.1); !errors.Is(err, ErrShortSeries) {
		t.Errorf("err = %v", err)
	}
	if _, err := ComputeSpectrum(make([]float64, 64), 0); !errors.Is(err, ErrShortSeries) {
		t.Errorf("zero dt: err = %v", err)
	}
}

func TestResponse(t *testing.T) {
	const dt = 1.0 / 60
	r, err := Response(sine(600, dt, 1, 0.2), dt, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(r.Peak-1) > r.Resolution {
		t.Errorf("peak = %v", r.Peak)
	}
	if r.DriverAmp != r.PeakAmp {
		t.Errorf("driver bin %v, peak %v", r.DriverAmp, r.PeakAmp)
	}
	if math.Abs(r.Swing-0.2) > 1e-3 {
		t.Errorf("swing = %v, want 0.2", r.Swing)
	}
}

func TestPhasePortrait(t *testing.T) {
	const dt = 0.01
	p := NewPhasePortrait(sine(200, dt, 1, 1), dt)
	if len(p.Points) != 198 {
		t.Fatalf("got %d points", len(p.Points))
	}
	// At t=0 the rate of a unit sine at 1 Hz is 2*pi.
	if got := p.Points[0].Y; math.Abs(got-2*math.Pi) > 0.05 {
		t.Errorf("rate = %v, want ~2pi", got)
	}

	art := p.ASCII(40, 10)
	if lines := strings.Count(art, "\n"); lines != 10 {
		t.Errorf("got %d lines", lines)
	}
	if !strings.Contains(art, "•") {
		t.Error("no points drawn")
	}
	if NewPhasePortrait([]float64{1}, dt) != nil {
		t.Error("short series should give nil")
	}
	if (*PhasePortrait)(nil).ASCII(10, 10) != "" {
		t.Error("nil portrait should render empty")
	}
}
