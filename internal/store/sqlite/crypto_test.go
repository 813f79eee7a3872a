package sqlite

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestSecretBox_RoundTrip(t *testing.T) {
	box, err := newSecretBox(testKey(0x01))
	require.NoError(t, err)

	plaintext := []byte(`{"api_key":"sk-secret"}`)
	sealed, err := box.seal(plaintext)
	require.NoError(t, err)

	// ciphertext is nonce + payload + tag, never the plaintext
	assert.NotContains(t, string(sealed), "sk-secret")

	opened, err := box.open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSecretBox_NonceVariesPerSeal(t *testing.T) {
	box, err := newSecretBox(testKey(0x01))
	require.NoError(t, err)

	a, err := box.seal([]byte("same"))
	require.NoError(t, err)
	b, err := box.seal([]byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSecretBox_WrongKeyFails(t *testing.T) {
	sealer, err := newSecretBox(testKey(0x01))
	require.NoError(t, err)
	opener, err := newSecretBox(testKey(0x02))
	require.NoError(t, err)

	sealed, err := sealer.seal([]byte("secret"))
	require.NoError(t, err)

	_, err = opener.open(sealed)
	assert.Error(t, err)
}

func TestSecretBox_TamperedBlobFails(t *testing.T) {
	box, err := newSecretBox(testKey(0x01))
	require.NoError(t, err)

	sealed, err := box.seal([]byte("secret"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xFF

	_, err = box.open(sealed)
	assert.Error(t, err)
}

func TestSecretBox_ShortBlob(t *testing.T) {
	box, err := newSecretBox(testKey(0x01))
	require.NoError(t, err)

	_, err = box.open([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestNewSecretBox_KeyLength(t *testing.T) {
	_, err := newSecretBox([]byte("too-short"))
	assert.Error(t, err)

	_, err = newSecretBox(testKey(0x01))
	assert.NoError(t, err)
}
