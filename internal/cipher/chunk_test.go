package cipher

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"key-manager-service/internal/domain"
)

func testKey(t *testing.T) *domain.SymmetricKey {
	t.Helper()
	var key domain.SymmetricKey
	_, err := rand.Read(key[:])
	require.NoError(t, err)
	return &key
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestChunk_RoundTrip(t *testing.T) {
	key := testKey(t)
	for _, size := range []int{16, 32, 48, 1024} {
		var iv domain.IV
		copy(iv[:], randomBytes(t, domain.BlockSize))
		plaintext := randomBytes(t, size)

		ciphertext := make([]byte, size)
		n, err := EncryptChunk(key, &iv, plaintext, ciphertext)
		require.NoError(t, err)
		require.Equal(t, size, n)
		require.NotEqual(t, plaintext, ciphertext)

		decrypted := make([]byte, size)
		n, err = DecryptChunk(key, &iv, ciphertext, decrypted)
		require.NoError(t, err)
		require.Equal(t, size, n)
		require.Equal(t, plaintext, decrypted)
	}
}

func TestChunk_ZeroIVScenario(t *testing.T) {
	key := testKey(t)
	var iv domain.IV
	plaintext := randomBytes(t, 32)

	ciphertext := make([]byte, 32)
	_, err := EncryptChunk(key, &iv, plaintext, ciphertext)
	require.NoError(t, err)

	decrypted := make([]byte, 32)
	_, err = DecryptChunk(key, &iv, ciphertext, decrypted)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

// 返却されたIVで続けた2回の暗号化は、連結した平文の1回の暗号化と一致する。
func TestChunk_ChainingEquivalence(t *testing.T) {
	key := testKey(t)
	var iv domain.IV
	copy(iv[:], randomBytes(t, domain.BlockSize))
	first := randomBytes(t, 48)
	second := randomBytes(t, 64)

	whole := make([]byte, len(first)+len(second))
	_, err := EncryptChunk(key, &iv, append(append([]byte{}, first...), second...), whole)
	require.NoError(t, err)

	out1 := make([]byte, len(first))
	_, err = EncryptChunk(key, &iv, first, out1)
	require.NoError(t, err)
	next, err := NextIV(out1)
	require.NoError(t, err)

	out2 := make([]byte, len(second))
	_, err = EncryptChunk(key, &next, second, out2)
	require.NoError(t, err)

	require.Equal(t, whole, append(out1, out2...))

	// 復号側も受信した暗号文の最終ブロックを次のIVとして連結できる
	plain1 := make([]byte, len(out1))
	_, err = DecryptChunk(key, &iv, out1, plain1)
	require.NoError(t, err)
	decNext, err := NextIV(out1)
	require.NoError(t, err)
	plain2 := make([]byte, len(out2))
	_, err = DecryptChunk(key, &decNext, out2, plain2)
	require.NoError(t, err)
	require.Equal(t, first, plain1)
	require.Equal(t, second, plain2)
}

func TestChunk_Misaligned(t *testing.T) {
	key := testKey(t)
	var iv domain.IV
	out := make([]byte, 64)

	_, err := EncryptChunk(key, &iv, make([]byte, 15), out)
	require.ErrorIs(t, err, domain.ErrBadParameters)

	_, err = DecryptChunk(key, &iv, make([]byte, 33), out)
	require.ErrorIs(t, err, domain.ErrBadParameters)
}

func TestChunk_ShortOutput(t *testing.T) {
	key := testKey(t)
	var iv domain.IV
	out := make([]byte, 16)

	_, err := EncryptChunk(key, &iv, make([]byte, 32), out)
	require.ErrorIs(t, err, domain.ErrShortBuffer)

	_, err = DecryptChunk(key, &iv, make([]byte, 32), out)
	require.ErrorIs(t, err, domain.ErrShortBuffer)
}

func TestChunk_LargerOutputLeavesTailUntouched(t *testing.T) {
	key := testKey(t)
	var iv domain.IV
	out := bytes.Repeat([]byte{0xAA}, 48)

	n, err := EncryptChunk(key, &iv, make([]byte, 32), out)
	require.NoError(t, err)
	require.Equal(t, 32, n)
	require.Equal(t, bytes.Repeat([]byte{0xAA}, 16), out[32:])
}

func TestNextIV(t *testing.T) {
	data := randomBytes(t, 48)
	iv, err := NextIV(data)
	require.NoError(t, err)
	require.Equal(t, data[32:], iv[:])

	_, err = NextIV(nil)
	require.ErrorIs(t, err, domain.ErrBadParameters)
	_, err = NextIV(make([]byte, 20))
	require.ErrorIs(t, err, domain.ErrBadParameters)
}
