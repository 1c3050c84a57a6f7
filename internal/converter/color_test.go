package converter

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := map[string]color.NRGBA{
		"#ffffff":   {R: 255, G: 255, B: 255, A: 255},
		"#FFF":      {R: 255, G: 255, B: 255, A: 255},
		"#102030":   {R: 0x10, G: 0x20, B: 0x30, A: 255},
		"#10203080": {R: 0x10, G: 0x20, B: 0x30, A: 0x80},
		" black ":   {A: 255},
	}
	for in, want := range tests {
		got, err := ParseColor(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "ffffff", "#ff", "#gggggg", "rebeccapurple"} {
		_, err := ParseColor(bad)
		require.Error(t, err, bad)
	}
}
