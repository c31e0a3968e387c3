package signature

import (
	"image"

	"golang.org/x/image/draw"
)

// Scalers used by the pipeline. CatmullRom stands in for area averaging when
// normalizing; BiLinear matches the default interpolation used for comparison
// sizes.
var (
	normalizeScaler draw.Interpolator = draw.CatmullRom
	compareScaler   draw.Interpolator = draw.BiLinear
)

// resizeGray scales src to exactly w x h pixels.
func resizeGray(src *image.Gray, w, h int, scaler draw.Interpolator) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if src.Bounds().Empty() {
		fillGray(dst, Background)
		return dst
	}
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// grayFloats flattens img into row-major float64 samples.
func grayFloats(img *image.Gray) []float64 {
	b := img.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		for _, v := range img.Pix[off : off+b.Dx()] {
			out = append(out, float64(v))
		}
	}
	return out
}
