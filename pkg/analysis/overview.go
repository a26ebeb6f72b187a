package analysis

import "fmt"

// Overview contains downsampled waveform data for visualization.
type Overview struct {
	PixelsPerSec int       `json:"pixels_per_sec" yaml:"pixels_per_sec"`
	Peaks        []float64 `json:"peaks" yaml:"peaks"`
	Troughs      []float64 `json:"troughs" yaml:"troughs"`
}

// NewOverview creates downsampled min/max data for drawing a waveform.
// pixelsPerSec controls the resolution (e.g., 100 = 100 data points per second).
func NewOverview(w *Waveform, pixelsPerSec int) (*Overview, error) {
	if pixelsPerSec <= 0 {
		return nil, fmt.Errorf("pixels per second must be positive, got %d", pixelsPerSec)
	}

	samplesPerPixel := max(w.SampleRate/pixelsPerSec, 1)

	numPixels := len(w.Samples) / samplesPerPixel
	if numPixels == 0 {
		return nil, fmt.Errorf("audio too short")
	}

	peaks := make([]float64, numPixels)
	troughs := make([]float64, numPixels)

	for i := 0; i < numPixels; i++ {
		chunk := w.Samples[i*samplesPerPixel : (i+1)*samplesPerPixel]

		maxVal, minVal := chunk[0], chunk[0]
		for _, s := range chunk[1:] {
			maxVal = max(maxVal, s)
			minVal = min(minVal, s)
		}

		peaks[i] = float64(maxVal)
		troughs[i] = float64(minVal)
	}

	return &Overview{
		PixelsPerSec: pixelsPerSec,
		Peaks:        peaks,
		Troughs:      troughs,
	}, nil
}
