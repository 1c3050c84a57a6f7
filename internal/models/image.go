// internal/models/image.go
package models

type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
	FormatWebP OutputFormat = "webp"
)

// ResizeOptions are caller-supplied constraints. Zero, negative and
// non-finite values mean "not set".
type ResizeOptions struct {
	Width        float64 `json:"width,omitempty" yaml:"width"`
	Height       float64 `json:"height,omitempty" yaml:"height"`
	MaxDimension float64 `json:"max_dimension,omitempty" yaml:"max_dimension"`
}

type ConvertSettings struct {
	OutputFormat OutputFormat `json:"output_format"`
	// Quality is a fraction in [0,1], only used by jpeg and webp. Nil means default.
	Quality *float64 `json:"quality,omitempty"`
	// Background fills transparent areas when encoding to jpeg.
	Background string         `json:"background,omitempty"`
	Resize     *ResizeOptions `json:"resize,omitempty"`
}

type TargetSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ConvertResult struct {
	Data       []byte
	Width      int
	Height     int
	OutputType string
	Size       int64
}

func (r *ConvertResult) Info() *ResultInfo {
	return &ResultInfo{
		Width:      r.Width,
		Height:     r.Height,
		OutputType: r.OutputType,
		Size:       r.Size,
	}
}
