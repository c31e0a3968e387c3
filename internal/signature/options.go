package signature

import (
	"fmt"
	"runtime"
)

// CursiveStrategy selects the scoring function used when either side of a
// comparison is classified as cursive.
type CursiveStrategy string

const (
	// CursiveTemplate routes cursive pairs to global template correlation.
	CursiveTemplate CursiveStrategy = "template"
	// CursiveStructural routes cursive pairs to structural similarity.
	CursiveStructural CursiveStrategy = "structural"
)

// Options holds every tunable of the matching pipeline. Enrollment and query
// normalization must run with identical canvas and quality settings.
type Options struct {
	CanvasWidth  int
	CanvasHeight int

	CloseKernelWidth  int
	CloseKernelHeight int

	MinInkPixels            int
	CursiveContourThreshold int

	MinLetterWidth  int
	MinLetterHeight int
	LetterWidth     int
	LetterHeight    int

	CompareWidth  int
	CompareHeight int
	SSIMWindow    int

	CursiveStrategy CursiveStrategy
	Workers         int
}

// DefaultOptions returns the 600x180 canvas configuration.
func DefaultOptions() Options {
	return Options{
		CanvasWidth:             600,
		CanvasHeight:            180,
		CloseKernelWidth:        15,
		CloseKernelHeight:       5,
		MinInkPixels:            300,
		CursiveContourThreshold: 3,
		MinLetterWidth:          5,
		MinLetterHeight:         20,
		LetterWidth:             40,
		LetterHeight:            60,
		CompareWidth:            300,
		CompareHeight:           90,
		SSIMWindow:              7,
		CursiveStrategy:         CursiveTemplate,
		Workers:                 runtime.GOMAXPROCS(0),
	}
}

// Validate reports the first invalid setting.
func (o Options) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"canvas width", o.CanvasWidth},
		{"canvas height", o.CanvasHeight},
		{"close kernel width", o.CloseKernelWidth},
		{"close kernel height", o.CloseKernelHeight},
		{"letter width", o.LetterWidth},
		{"letter height", o.LetterHeight},
		{"compare width", o.CompareWidth},
		{"compare height", o.CompareHeight},
		{"ssim window", o.SSIMWindow},
		{"workers", o.Workers},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("signature: %s must be positive, got %d", p.name, p.value)
		}
	}
	if o.MinInkPixels < 0 {
		return fmt.Errorf("signature: min ink pixels must not be negative, got %d", o.MinInkPixels)
	}
	if o.CursiveContourThreshold < 0 {
		return fmt.Errorf("signature: cursive contour threshold must not be negative, got %d", o.CursiveContourThreshold)
	}
	if o.SSIMWindow > o.CompareWidth || o.SSIMWindow > o.CompareHeight {
		return fmt.Errorf("signature: ssim window %d exceeds compare size %dx%d", o.SSIMWindow, o.CompareWidth, o.CompareHeight)
	}
	switch o.CursiveStrategy {
	case CursiveTemplate, CursiveStructural:
	default:
		return fmt.Errorf("signature: unknown cursive strategy %q", o.CursiveStrategy)
	}
	return nil
}
