package checksum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestKnownVector(t *testing.T) {
	// sha256("abc"), FIPS 180-2 test vector.
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		Digest([]byte("abc")))
}

func TestDigestEmptyInput(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Digest(nil))
}

func TestDigestReaderMatchesDigest(t *testing.T) {
	payload := strings.Repeat("docuvault", 4096)

	got, err := DigestReader(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, Digest([]byte(payload)), got)
}

func TestVerify(t *testing.T) {
	data := []byte("payload under test")
	sum := Digest(data)

	assert.True(t, Verify(data, sum))
	assert.False(t, Verify([]byte("tampered payload xx"), sum))
	assert.False(t, Verify(data, ""))
}
