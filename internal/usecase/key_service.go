// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"crypto/rand"
	"fmt"

	"key-manager-service/internal/cipher"
	"key-manager-service/internal/domain"
	"key-manager-service/internal/keycodec"
)

// KeyCache は鍵のキャッシュと永続化のインターフェース。
type KeyCache interface {
	LoadSymmetricKey(ctx context.Context) (*domain.SymmetricKey, error)
	UpdateSymmetricKey(ctx context.Context, key *domain.SymmetricKey) error
	SymmetricKeyExists(ctx context.Context) (bool, error)
	LoadAsymmetricKey(ctx context.Context) (*domain.AsymmetricKeyComponents, error)
	UpdateAsymmetricKey(ctx context.Context, components *domain.AsymmetricKeyComponents) error
}

// KeyService は鍵の生成・入出力と暗号処理を提供する。
type KeyService struct {
	cache       KeyCache
	defaultBits int
}

// NewKeyService は新しいKeyServiceを生成する。defaultBitsはRSA鍵生成時の既定ビット長。
func NewKeyService(cache KeyCache, defaultBits int) *KeyService {
	if defaultBits == 0 {
		defaultBits = domain.DefaultAsymmetricKeyBits
	}
	return &KeyService{
		cache:       cache,
		defaultBits: defaultBits,
	}
}

// GenerateSymmetricKey は新しいAES-256鍵を生成して保存する。
func (s *KeyService) GenerateSymmetricKey(ctx context.Context) error {
	var key domain.SymmetricKey
	if _, err := rand.Read(key[:]); err != nil {
		return fmt.Errorf("generating random key: %w", err)
	}
	defer clear(key[:])

	if err := s.cache.UpdateSymmetricKey(ctx, &key); err != nil {
		return fmt.Errorf("storing generated key: %w", err)
	}
	return nil
}

// ImportSymmetricKey は呼び出し元が指定した32バイトの鍵を保存する。
func (s *KeyService) ImportSymmetricKey(ctx context.Context, material []byte) error {
	if len(material) != domain.SymmetricKeySize {
		return fmt.Errorf("%w: key must be %d bytes, got %d", domain.ErrBadParameters, domain.SymmetricKeySize, len(material))
	}
	var key domain.SymmetricKey
	copy(key[:], material)
	defer clear(key[:])

	if err := s.cache.UpdateSymmetricKey(ctx, &key); err != nil {
		return fmt.Errorf("storing imported key: %w", err)
	}
	return nil
}

// ExportSymmetricKey は対称鍵をoutに書き出し、書き込んだバイト数を返す。
func (s *KeyService) ExportSymmetricKey(ctx context.Context, out []byte) (int, error) {
	key, err := s.cache.LoadSymmetricKey(ctx)
	if err != nil {
		return 0, err
	}
	defer clear(key[:])

	if len(out) < len(key) {
		return len(key), domain.ErrShortBuffer
	}
	return copy(out, key[:]), nil
}

// EncryptChunk はinputをivでCBC暗号化してoutputに書き込む。
// 戻り値の次IVは暗号文の最終ブロックで、呼び出し元は次のチャンクにこれを渡す。
func (s *KeyService) EncryptChunk(ctx context.Context, iv domain.IV, input, output []byte) (int, domain.IV, error) {
	if err := validateChunk(input, output); err != nil {
		return 0, domain.IV{}, err
	}

	key, err := s.cache.LoadSymmetricKey(ctx)
	if err != nil {
		return 0, domain.IV{}, err
	}
	defer clear(key[:])

	n, err := cipher.EncryptChunk(key, &iv, input, output)
	if err != nil {
		return 0, domain.IV{}, err
	}
	next, err := cipher.NextIV(output[:n])
	if err != nil {
		return 0, domain.IV{}, err
	}
	return n, next, nil
}

// DecryptChunk はinputをivでCBC復号してoutputに書き込む。
// 戻り値の次IVは受け取った暗号文の最終ブロック。
func (s *KeyService) DecryptChunk(ctx context.Context, iv domain.IV, input, output []byte) (int, domain.IV, error) {
	if err := validateChunk(input, output); err != nil {
		return 0, domain.IV{}, err
	}
	// outputとinputが重なっていても正しいIVを返せるよう先に取り出す
	next, err := cipher.NextIV(input)
	if err != nil {
		return 0, domain.IV{}, err
	}

	key, err := s.cache.LoadSymmetricKey(ctx)
	if err != nil {
		return 0, domain.IV{}, err
	}
	defer clear(key[:])

	n, err := cipher.DecryptChunk(key, &iv, input, output)
	if err != nil {
		return 0, domain.IV{}, err
	}
	return n, next, nil
}

// RandomBytes はbufを乱数で埋める。
func (s *KeyService) RandomBytes(buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("%w: empty buffer", domain.ErrBadParameters)
	}
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generating random bytes: %w", err)
	}
	return nil
}

// HasSymmetricKey は対称鍵が永続化済みかを返す。
func (s *KeyService) HasSymmetricKey(ctx context.Context) (bool, error) {
	exists, err := s.cache.SymmetricKeyExists(ctx)
	if err != nil {
		return false, fmt.Errorf("checking symmetric key: %w", err)
	}
	return exists, nil
}

// GenerateAsymmetricKey はRSA鍵ペアを生成して保存する。bitsが0なら既定値を使う。
func (s *KeyService) GenerateAsymmetricKey(ctx context.Context, bits int) error {
	if bits == 0 {
		bits = s.defaultBits
	}
	components, err := keycodec.Generate(bits)
	if err != nil {
		return err
	}
	if err := s.cache.UpdateAsymmetricKey(ctx, components); err != nil {
		return fmt.Errorf("storing generated keypair: %w", err)
	}
	return nil
}

// ImportAsymmetricKey はシリアライズ済みのRSA鍵構成要素を保存する。
// 構造が不正な場合は既存の鍵に触れずにErrBadParametersを返す。
func (s *KeyService) ImportAsymmetricKey(ctx context.Context, blob []byte) error {
	components, err := keycodec.Deserialize(blob)
	if err != nil {
		return err
	}
	if err := s.cache.UpdateAsymmetricKey(ctx, components); err != nil {
		return fmt.Errorf("storing imported keypair: %w", err)
	}
	return nil
}

// ExportAsymmetricPublic は公開要素のシリアライズ結果をoutに書き出す。
// outが足りない場合は必要なバイト数とErrShortBufferを返す。
func (s *KeyService) ExportAsymmetricPublic(ctx context.Context, out []byte) (int, error) {
	components, err := s.cache.LoadAsymmetricKey(ctx)
	if err != nil {
		return 0, err
	}
	defer clear(components.PrivateExponent)

	public := components.Public()
	size := keycodec.PublicSize(public)
	if len(out) < size {
		return size, domain.ErrShortBuffer
	}
	return copy(out, keycodec.SerializePublic(public)), nil
}

// SealModel はモデルデータをゼロパディングし、ランダムIV付きで暗号化してoutに書き込む。
func (s *KeyService) SealModel(ctx context.Context, plaintext, out []byte) (int, error) {
	if len(plaintext) == 0 {
		return 0, fmt.Errorf("%w: empty plaintext", domain.ErrBadParameters)
	}
	size := cipher.SealedLen(len(plaintext))
	if len(out) < size {
		return size, domain.ErrShortBuffer
	}

	key, err := s.cache.LoadSymmetricKey(ctx)
	if err != nil {
		return 0, err
	}
	defer clear(key[:])

	sealed, err := cipher.SealModel(key, plaintext)
	if err != nil {
		return 0, err
	}
	return copy(out, sealed), nil
}

// OpenModel はSealModelの出力を復号してoutに書き込む。パディングは除去しない。
func (s *KeyService) OpenModel(ctx context.Context, sealed, out []byte) (int, error) {
	if len(sealed) < 2*domain.BlockSize || len(sealed)%domain.BlockSize != 0 {
		return 0, fmt.Errorf("%w: sealed model must be IV plus whole blocks", domain.ErrBadParameters)
	}
	size := len(sealed) - domain.BlockSize
	if len(out) < size {
		return size, domain.ErrShortBuffer
	}

	key, err := s.cache.LoadSymmetricKey(ctx)
	if err != nil {
		return 0, err
	}
	defer clear(key[:])

	plaintext, err := cipher.OpenModel(key, sealed)
	if err != nil {
		return 0, err
	}
	return copy(out, plaintext), nil
}

func validateChunk(input, output []byte) error {
	if len(input) == 0 {
		return fmt.Errorf("%w: empty chunk", domain.ErrBadParameters)
	}
	if len(input)%domain.BlockSize != 0 {
		return fmt.Errorf("%w: chunk of %d bytes is not block aligned", domain.ErrBadParameters, len(input))
	}
	if len(output) < len(input) {
		return domain.ErrShortBuffer
	}
	return nil
}
