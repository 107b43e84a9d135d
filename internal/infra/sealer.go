package infra

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"key-manager-service/internal/domain"
)

const sealInfo = "key-manager-service object seal v1"

// ErrSealedDataInvalid は封印データの認証に失敗した場合のエラー。
// 改ざん・取り違えとして ErrCorruptObject を包む。
var ErrSealedDataInvalid = fmt.Errorf("%w: sealed data failed authentication", domain.ErrCorruptObject)

// LocalSealer はXChaCha20-Poly1305でオブジェクトを封印する。
// Cloud KMSを使わないローカル環境・テスト用。
type LocalSealer struct {
	key []byte
}

// NewLocalSealer はsecretからHKDF-SHA256で封印鍵を導出する。
func NewLocalSealer(secret string) (*LocalSealer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("seal secret must be at least 16 bytes")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving seal key: %w", err)
	}
	return &LocalSealer{key: key}, nil
}

// Seal は nonce || 暗号文 を返す。objectIDは追加認証データとして束縛する。
func (s *LocalSealer) Seal(_ context.Context, objectID string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, []byte(objectID)), nil
}

// Open はSealの出力を復号する。
func (s *LocalSealer) Open(_ context.Context, objectID string, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedDataInvalid
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(objectID))
	if err != nil {
		return nil, ErrSealedDataInvalid
	}
	return plaintext, nil
}
