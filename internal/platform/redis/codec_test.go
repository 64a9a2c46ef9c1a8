package redis_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/extract"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform/redis"
)

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	in := payload.New("com.x.SCAN", "", "EXTRA_BARCODE", "4006381333931")
	in.Fields["dotted.key"] = "d"

	data, err := redis.Encode(in)
	require.NoError(t, err)

	out, err := redis.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, "com.x.SCAN", out.Action)
	assert.Equal(t, payload.DefaultCategory, out.Category)
	assert.Equal(t, "4006381333931", out.Fields["EXTRA_BARCODE"])
	assert.Equal(t, "d", out.Fields["dotted.key"])
	assert.WithinDuration(t, in.SentAt, out.SentAt, time.Millisecond)
}

func TestCodec_NonStringFieldsNotExtractable(t *testing.T) {
	t.Parallel()

	msg := []byte(`{"action":"A","fields":{"S":"v","N":12,"B":true,"O":{"x":"y"}}}`)
	p, err := redis.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, float64(12), p.Fields["N"])

	got, missing := extract.Extract(p, []string{"S", "N", "B", "O"})
	assert.Equal(t, map[string]string{"S": "v"}, got)
	assert.Equal(t, []string{"N", "B", "O"}, missing)
}

func TestCodec_Malformed(t *testing.T) {
	t.Parallel()

	for name, msg := range map[string]string{
		"not json":   `{"action":`,
		"array":      `["A"]`,
		"no action":  `{"fields":{"a":"b"}}`,
		"bad action": `{"action":12}`,
	} {
		_, err := redis.Decode([]byte(msg))
		assert.ErrorIs(t, err, redis.ErrMalformedMessage, name)
	}
}
