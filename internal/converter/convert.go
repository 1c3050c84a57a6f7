package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"filealchemist/internal/models"
)

// DefaultQuality applies to jpeg and webp output when settings carry none.
const DefaultQuality = 0.92

var (
	ErrDecode    = errors.New("decode error")
	ErrDimension = errors.New("dimension error")
	ErrEncode    = errors.New("encode error")
)

// Error is returned by Convert. Its message is meant for end users; the kind
// (ErrDecode, ErrDimension, ErrEncode) is matched with errors.Is.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Converter is safe for concurrent use. The zero value resamples with
// imaging.NearestNeighbor; New uses Lanczos.
type Converter struct {
	Filter imaging.ResampleFilter
}

func New() *Converter {
	return &Converter{Filter: imaging.Lanczos}
}

// Convert decodes data, resizes it according to settings and re-encodes it
// to the requested output format.
func (c *Converter) Convert(ctx context.Context, data []byte, settings models.ConvertSettings) (*models.ConvertResult, error) {
	outputMime := ToOutputMime(settings.OutputFormat)
	if outputMime == "" {
		return nil, &Error{Kind: ErrEncode, Msg: fmt.Sprintf("unsupported output format %q", settings.OutputFormat)}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Kind: ErrDecode, Msg: "failed to decode image", Err: err}
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, &Error{Kind: ErrDimension, Msg: fmt.Sprintf("image exceeds max dimension of %dpx", MaxDimension)}
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Kind: ErrDecode, Msg: "failed to decode image", Err: err}
	}
	bounds := src.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		return nil, &Error{Kind: ErrDimension, Msg: fmt.Sprintf("image exceeds max dimension of %dpx", MaxDimension)}
	}

	target := CalculateTargetSize(bounds.Dx(), bounds.Dy(), settings.Resize)
	if target.Width > MaxDimension || target.Height > MaxDimension {
		return nil, &Error{Kind: ErrDimension, Msg: fmt.Sprintf("target size exceeds max dimension of %dpx", MaxDimension)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var canvas image.Image = imaging.Resize(src, target.Width, target.Height, c.Filter)
	if outputMime == MimeJPEG {
		canvas = flatten(canvas, background(settings.Background))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch outputMime {
	case MimePNG:
		err = png.Encode(&buf, canvas)
	case MimeJPEG:
		err = jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality(settings.Quality)})
	case MimeWebP:
		err = webp.Encode(&buf, canvas, &webp.Options{Quality: float32(ClampQuality(settings.Quality) * 100)})
	}
	if err != nil {
		return nil, &Error{Kind: ErrEncode, Msg: "failed to encode image", Err: err}
	}

	return &models.ConvertResult{
		Data:       buf.Bytes(),
		Width:      target.Width,
		Height:     target.Height,
		OutputType: outputMime,
		Size:       int64(buf.Len()),
	}, nil
}

// ClampQuality returns q clamped to [0,1], or DefaultQuality when q is nil
// or NaN. Out of range values are coerced, not rejected.
func ClampQuality(q *float64) float64 {
	if q == nil || math.IsNaN(*q) {
		return DefaultQuality
	}
	return math.Min(1, math.Max(0, *q))
}

func jpegQuality(q *float64) int {
	return max(1, int(math.Round(ClampQuality(q)*100)))
}

func background(s string) image.Image {
	if s == "" {
		return image.NewUniform(DefaultBackground)
	}
	c, err := ParseColor(s)
	if err != nil {
		return image.NewUniform(DefaultBackground)
	}
	return image.NewUniform(c)
}

// flatten composites img over a canvas filled with bg; jpeg has no alpha.
func flatten(img image.Image, bg image.Image) image.Image {
	rect := image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy())
	dst := image.NewNRGBA(rect)
	xdraw.Draw(dst, rect, bg, image.Point{}, xdraw.Src)
	xdraw.Draw(dst, rect, img, img.Bounds().Min, xdraw.Over)
	return dst
}
