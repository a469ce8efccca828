package models

import (
	"math"
	"testing"

	"github.com/crisisops/relief_backend/utils"
)

func TestBlurValueStaysWithinOffset(t *testing.T) {
	const center = 30.6213
	for i := 0; i < 1000; i++ {
		blurred := blurValue(center)
		if math.Abs(blurred-center) > MaxBlurOffset {
			t.Fatalf("blurValue(%v) = %v, outside +/- %v", center, blurred, MaxBlurOffset)
		}
	}
}

func TestApplyBlurredCoordinates(t *testing.T) {
	site := &Site{
		Latitude:  utils.NewFloat(30.6213),
		Longitude: utils.NewFloat(-96.3421),
	}
	site.applyBlurredCoordinates()
	if site.BlurredLatitude == nil || site.BlurredLongitude == nil {
		t.Fatal("blurred coordinates missing for a located site")
	}
	if math.Abs(*site.BlurredLatitude-*site.Latitude) > MaxBlurOffset {
		t.Errorf("blurred latitude %v too far from %v", *site.BlurredLatitude, *site.Latitude)
	}
	if math.Abs(*site.BlurredLongitude-*site.Longitude) > MaxBlurOffset {
		t.Errorf("blurred longitude %v too far from %v", *site.BlurredLongitude, *site.Longitude)
	}
}

func TestApplyBlurredCoordinatesWithoutLocation(t *testing.T) {
	site := &Site{}
	site.applyBlurredCoordinates()
	if site.BlurredLatitude != nil || site.BlurredLongitude != nil {
		t.Error("a site without coordinates must not get blurred ones")
	}
}
