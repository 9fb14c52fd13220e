// Package analysis looks at the per-frame series of a finished run.
//
//   - [ComputeSpectrum]: windowed amplitude spectrum of a uniformly sampled series
//   - [Response]: how the driven center follows the driver
//   - [NewPhasePortrait]: a series against its own rate of change
//
// A driven cloth settles into a steady oscillation at the driver frequency:
//
//	resp := analysis.Response(centerY, dt, driver.Frequency)
//	if math.Abs(resp.Peak-driver.Frequency) > resp.Resolution {
//	    // not locked to the driver yet
//	}
package analysis
