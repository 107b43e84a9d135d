// Package keycodec はRSA鍵の生成と、構成要素の長さプレフィックス付きバイナリ表現への
// シリアライズ/デシリアライズを提供する。
//
// 各フィールドは4バイトのリトルエンディアン長の後に値が続く。順序は
// modulus, publicExponent, privateExponent で固定。公開鍵のエクスポートは
// 先頭2フィールドのみを同じ形式で出力する。
package keycodec

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"fmt"
	"math/big"

	"key-manager-service/internal/domain"
)

const (
	lengthPrefixSize = 4
	// 3フィールド分の長さプレフィックス
	minSerializedSize = 3 * lengthPrefixSize
	minKeyBits        = 1024
)

// Generate は指定ビット長のRSA鍵ペアを生成し、構成要素を返す。
func Generate(bits int) (*domain.AsymmetricKeyComponents, error) {
	if bits > domain.MaxAsymmetricKeyBits || bits < minKeyBits {
		return nil, fmt.Errorf("%w: unsupported key size %d", domain.ErrBadParameters, bits)
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating rsa key: %w", err)
	}
	return &domain.AsymmetricKeyComponents{
		Modulus:         key.N.Bytes(),
		PublicExponent:  big.NewInt(int64(key.E)).Bytes(),
		PrivateExponent: key.D.Bytes(),
	}, nil
}

// Serialize は3つの構成要素を長さプレフィックス付きで連結する。
func Serialize(c *domain.AsymmetricKeyComponents) []byte {
	out := make([]byte, 0, minSerializedSize+len(c.Modulus)+len(c.PublicExponent)+len(c.PrivateExponent))
	out = appendField(out, c.Modulus)
	out = appendField(out, c.PublicExponent)
	out = appendField(out, c.PrivateExponent)
	return out
}

// SerializePublic は公開要素のみを長さプレフィックス付きで連結する。
func SerializePublic(p domain.PublicKeyComponents) []byte {
	out := make([]byte, 0, 2*lengthPrefixSize+len(p.Modulus)+len(p.PublicExponent))
	out = appendField(out, p.Modulus)
	out = appendField(out, p.PublicExponent)
	return out
}

// PublicSize はSerializePublicの出力長を返す。
func PublicSize(p domain.PublicKeyComponents) int {
	return 2*lengthPrefixSize + len(p.Modulus) + len(p.PublicExponent)
}

// Deserialize はSerializeの出力を構成要素に戻す。
// 宣言された長さが残りのバッファを超える場合はErrBadParametersを返し、
// 入力の範囲外を読むことはない。末尾の余剰バイトは無視する。
func Deserialize(data []byte) (*domain.AsymmetricKeyComponents, error) {
	if len(data) < minSerializedSize {
		return nil, fmt.Errorf("%w: serialized key too short", domain.ErrBadParameters)
	}
	r := reader{buf: data}
	modulus, err := r.field()
	if err != nil {
		return nil, err
	}
	publicExponent, err := r.field()
	if err != nil {
		return nil, err
	}
	privateExponent, err := r.field()
	if err != nil {
		return nil, err
	}
	return &domain.AsymmetricKeyComponents{
		Modulus:         modulus,
		PublicExponent:  publicExponent,
		PrivateExponent: privateExponent,
	}, nil
}

func appendField(out, value []byte) []byte {
	out = binary.LittleEndian.AppendUint32(out, uint32(len(value)))
	return append(out, value...)
}

type reader struct {
	buf []byte
}

func (r *reader) field() ([]byte, error) {
	if len(r.buf) < lengthPrefixSize {
		return nil, fmt.Errorf("%w: truncated length prefix", domain.ErrBadParameters)
	}
	n := uint64(binary.LittleEndian.Uint32(r.buf[:lengthPrefixSize]))
	rest := r.buf[lengthPrefixSize:]
	if uint64(len(rest)) < n {
		return nil, fmt.Errorf("%w: field length %d exceeds remaining %d bytes", domain.ErrBadParameters, n, len(rest))
	}
	value := make([]byte, n)
	copy(value, rest[:n])
	r.buf = rest[n:]
	return value, nil
}
