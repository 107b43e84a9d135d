// Package domain はドメインモデルとビジネスルールを定義する。
package domain

const (
	// SymmetricKeySize はAES-256鍵のバイト長。
	SymmetricKeySize = 32
	// BlockSize はAESのブロック長（IV長）。
	BlockSize = 16
	// MaxAsymmetricKeyBits は生成可能なRSA鍵の最大ビット長。
	MaxAsymmetricKeyBits = 4096
	// DefaultAsymmetricKeyBits はビット長が指定されなかった場合のRSA鍵長。
	DefaultAsymmetricKeyBits = 2048
)

// 永続ストア上の固定オブジェクト識別子。
const (
	SymmetricKeyObjectID  = "aes_key"
	AsymmetricKeyObjectID = "rsa_key"
)

// SymmetricKey はAES-256鍵を表す。
type SymmetricKey [SymmetricKeySize]byte

// IV はCBCの連鎖状態（初期化ベクタ）を表す。
type IV [BlockSize]byte

// AsymmetricKeyComponents はRSA鍵の構成要素を表す。
// 各フィールドはビッグエンディアンの最小長バイト列。
type AsymmetricKeyComponents struct {
	Modulus         []byte
	PublicExponent  []byte
	PrivateExponent []byte
}

// Public は公開要素のみを取り出す。
func (c *AsymmetricKeyComponents) Public() PublicKeyComponents {
	return PublicKeyComponents{
		Modulus:        c.Modulus,
		PublicExponent: c.PublicExponent,
	}
}

// Clone は内部バッファを共有しないコピーを返す。
func (c *AsymmetricKeyComponents) Clone() *AsymmetricKeyComponents {
	return &AsymmetricKeyComponents{
		Modulus:         append([]byte(nil), c.Modulus...),
		PublicExponent:  append([]byte(nil), c.PublicExponent...),
		PrivateExponent: append([]byte(nil), c.PrivateExponent...),
	}
}

// PublicKeyComponents はエクスポート可能なRSA公開要素を表す（秘密指数を持たない）。
type PublicKeyComponents struct {
	Modulus        []byte
	PublicExponent []byte
}
