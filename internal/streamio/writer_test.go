package streamio_test

import (
	"bytes"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

func TestWriter_WritesOneJSONLinePerRecord(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	w := streamio.NewWriter(&buf, false)
	require.NoError(t, w.Write(sample{A: 1}))
	require.NoError(t, w.Write(sample{A: 2}))
	require.NoError(t, w.Flush())

	assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", buf.String())
}

func TestWriter_CompressedRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	w := streamio.NewWriter(&buf, true)
	require.NoError(t, w.Write(sample{A: 42}))
	require.NoError(t, w.Flush())

	lzr := lz4.NewReader(&buf)

	decompressed, err := decodeAll(lzr)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":42}\n", string(decompressed))
}

func decodeAll(r *lz4.Reader) ([]byte, error) {
	var out bytes.Buffer

	_, err := out.ReadFrom(r)

	return out.Bytes(), err
}
