package cipher

import (
	"crypto/rand"
	"fmt"

	"key-manager-service/internal/domain"
)

// SealedLen はplaintextLenバイトをSealModelした結果の長さを返す。
func SealedLen(plaintextLen int) int {
	return domain.BlockSize + paddedLen(plaintextLen)
}

// SealModel は平文をブロック長までゼロ埋めし、新しいランダムIVで暗号化して
// IV || 暗号文 を返す。
// 空の平文はOpenModelで復号できない出力になるため受け付けない。
func SealModel(key *domain.SymmetricKey, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, domain.ErrBadParameters
	}
	padded := make([]byte, paddedLen(len(plaintext)))
	copy(padded, plaintext)

	var iv domain.IV
	if _, err := rand.Read(iv[:]); err != nil {
		return nil, fmt.Errorf("generating iv: %w", err)
	}

	out := make([]byte, domain.BlockSize+len(padded))
	copy(out, iv[:])
	if _, err := EncryptChunk(key, &iv, padded, out[domain.BlockSize:]); err != nil {
		return nil, err
	}
	return out, nil
}

// OpenModel はSealModelの出力を復号する。先頭ブロックをIVとして取り除く。
// ゼロ埋めは除去しないため、戻り値の長さはブロック長の倍数になる。
func OpenModel(key *domain.SymmetricKey, sealed []byte) ([]byte, error) {
	// IV + 最低1ブロック
	if len(sealed) < 2*domain.BlockSize {
		return nil, domain.ErrBadParameters
	}
	var iv domain.IV
	copy(iv[:], sealed[:domain.BlockSize])
	ciphertext := sealed[domain.BlockSize:]

	out := make([]byte, len(ciphertext))
	if _, err := DecryptChunk(key, &iv, ciphertext, out); err != nil {
		return nil, err
	}
	return out, nil
}

func paddedLen(n int) int {
	return (n + domain.BlockSize - 1) / domain.BlockSize * domain.BlockSize
}
