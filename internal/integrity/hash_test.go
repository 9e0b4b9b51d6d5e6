package integrity

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashBytesKnownVector(t *testing.T) {
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashBytes(nil))
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashBytes([]byte("abc")))
}

func TestHashReaderMatchesHashBytes(t *testing.T) {
	data := bytes.Repeat([]byte("pdf"), 4096)
	got, n, err := HashReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.Equal(t, HashBytes(data), got)
}

func TestEqual(t *testing.T) {
	h := HashBytes([]byte("abc"))
	require.True(t, Equal(h, h))
	require.True(t, Equal(h, "BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD"))
	require.False(t, Equal(h, HashBytes([]byte("abd"))))
	require.False(t, Equal("", ""))
}
