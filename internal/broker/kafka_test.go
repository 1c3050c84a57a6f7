package broker

import (
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	id := uuid.New()

	got, err := ParseMessage(kafka.Message{Value: []byte(id.String())})
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseMessage(kafka.Message{Value: []byte("not-a-uuid")})
	require.Error(t, err)
}
