package converter

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"filealchemist/internal/models"
)

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
)

var InputMimeTypes = []string{MimePNG, MimeJPEG, MimeWebP}

var outputMimes = map[models.OutputFormat]string{
	models.FormatPNG:  MimePNG,
	models.FormatJPEG: MimeJPEG,
	models.FormatWebP: MimeWebP,
}

var outputExtensions = map[models.OutputFormat]string{
	models.FormatPNG:  ".png",
	models.FormatJPEG: ".jpg",
	models.FormatWebP: ".webp",
}

// IsSupportedInput reports whether mime is exactly one of InputMimeTypes.
func IsSupportedInput(mime string) bool {
	for _, m := range InputMimeTypes {
		if m == mime {
			return true
		}
	}
	return false
}

func ToOutputMime(format models.OutputFormat) string {
	return outputMimes[format]
}

func OutputExtension(format models.OutputFormat) string {
	return outputExtensions[format]
}

func ParseOutputFormat(s string) (models.OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return models.FormatPNG, nil
	case "jpeg", "jpg":
		return models.FormatJPEG, nil
	case "webp":
		return models.FormatWebP, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

// DetectMime sniffs the media type from content, without parameters.
func DetectMime(data []byte) string {
	m := mimetype.Detect(data).String()
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return m
}

// ResolveMime prefers the declared type and falls back to sniffing when the
// client declared nothing useful.
func ResolveMime(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared == "" || declared == "application/octet-stream" {
		return DetectMime(data)
	}
	return declared
}
