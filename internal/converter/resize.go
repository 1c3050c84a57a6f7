package converter

import (
	"math"

	"filealchemist/internal/models"
)

// MaxDimension bounds either axis of a source or output image.
const MaxDimension = 8000

// CalculateTargetSize returns the pixel size an image of srcWidth x srcHeight
// is redrawn to. Explicit width and height together override the aspect ratio;
// a single one scales the other axis proportionally. MaxDimension in opts then
// shrinks the result uniformly. The result is never smaller than 1x1.
func CalculateTargetSize(srcWidth, srcHeight int, opts *models.ResizeOptions) models.TargetSize {
	srcW := float64(max(srcWidth, 1))
	srcH := float64(max(srcHeight, 1))

	var width, height, limit float64
	if opts != nil {
		width = normalizeDimension(opts.Width)
		height = normalizeDimension(opts.Height)
		limit = normalizeDimension(opts.MaxDimension)
	}

	targetW, targetH := srcW, srcH
	switch {
	case width > 0 && height > 0:
		targetW, targetH = width, height
	case width > 0:
		ratio := width / srcW
		targetW = width
		targetH = math.Round(srcH * ratio)
	case height > 0:
		ratio := height / srcH
		targetH = height
		targetW = math.Round(srcW * ratio)
	}

	if limit > 0 {
		if longest := math.Max(targetW, targetH); longest > limit {
			ratio := limit / longest
			targetW = math.Round(targetW * ratio)
			targetH = math.Round(targetH * ratio)
		}
	}

	return models.TargetSize{
		Width:  int(math.Max(1, math.Round(targetW))),
		Height: int(math.Max(1, math.Round(targetH))),
	}
}

// normalizeDimension returns 0 for values that do not count as a constraint.
func normalizeDimension(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	v = math.Round(v)
	if v > MaxDimension {
		return MaxDimension
	}
	return v
}
