package format

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1 KB"},
		{1280, "1.3 KB"}, // 1.25 rounds up
		{1536, "1.5 KB"},
		{2048, "2 KB"},
		{10 * 1024, "10 KB"},
		{10.5 * 1024, "11 KB"},
		{1023 * 1024, "1023 KB"},
		{5 * 1024 * 1024, "5 MB"},
		{1.25 * 1024 * 1024 * 1024, "1.3 GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3072 GB"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, FormatBytes(tt.in), "%v", tt.in)
	}
}

func TestFormatBytes_NotANumber(t *testing.T) {
	require.Equal(t, "-", FormatBytes(math.NaN()))
	require.Equal(t, "-", FormatBytes(math.Inf(1)))
}
