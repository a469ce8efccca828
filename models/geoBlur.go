package models

import "math/rand"

// MaxBlurOffset is the largest angular offset, in degrees, applied to a
// coordinate before it is shown publicly. Roughly two kilometers of
// latitude: enough to hide a rooftop, not a neighborhood.
const MaxBlurOffset = 0.0187

func blurValue(v float64) float64 {
	return v + (rand.Float64()*2-1)*MaxBlurOffset
}

// applyBlurredCoordinates derives the public-facing coordinates from the
// true ones. A missing true coordinate yields a missing blurred one. The
// blur is fixed at creation and only recomputed when the true coordinate
// itself changes; recomputing on every save would make the public pin
// drift with each unrelated edit.
func (s *Site) applyBlurredCoordinates() {
	if s.Latitude != nil {
		blurred := blurValue(*s.Latitude)
		s.BlurredLatitude = &blurred
	} else {
		s.BlurredLatitude = nil
	}
	if s.Longitude != nil {
		blurred := blurValue(*s.Longitude)
		s.BlurredLongitude = &blurred
	} else {
		s.BlurredLongitude = nil
	}
}
