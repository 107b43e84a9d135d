// Package cipher はAES-256-CBC（パディングなし）による暗号化/復号を提供する。
//
// 2つのモードがあり、IVの扱いが異なるため混同しないこと。
//
//   - チャンクモード（EncryptChunk/DecryptChunk）: IVは呼び出し元が保持し、
//     毎回の呼び出しで渡す。前回の呼び出しが返したIVを次の呼び出しに渡すことで
//     複数回の呼び出しが1つのCBCストリームとして連結される。
//   - モデルモード（SealModel/OpenModel）: 呼び出しごとにランダムなIVを生成し、
//     出力の先頭に付与する。各メッセージは自己完結している。
//
// どちらも鍵を受け取った呼び出しの間だけ使用し、保持しない。
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"fmt"

	"key-manager-service/internal/domain"
)

// EncryptChunk はinputをCBCで暗号化してoutputに書き込み、書き込んだバイト数を返す。
//
// 事前条件: len(input)はブロック長の倍数、len(output) >= len(input)。
// ivには直前のチャンクのNextIVを渡す（最初のチャンクでは任意の初期IV）。
// 事後条件: 出力長は入力長と等しく、パディングは付与しない。
func EncryptChunk(key *domain.SymmetricKey, iv *domain.IV, input, output []byte) (int, error) {
	mode, err := newMode(key, iv, true)
	if err != nil {
		return 0, err
	}
	return crypt(mode, input, output)
}

// DecryptChunk はinputをCBCで復号してoutputに書き込み、書き込んだバイト数を返す。
// 事前条件・事後条件はEncryptChunkと同じ。パディングの除去は行わない。
func DecryptChunk(key *domain.SymmetricKey, iv *domain.IV, input, output []byte) (int, error) {
	mode, err := newMode(key, iv, false)
	if err != nil {
		return 0, err
	}
	return crypt(mode, input, output)
}

// NextIV は次のチャンクに渡すIVを返す。ciphertextの最後のブロックがそれに当たる。
// 暗号化では出力、復号では入力の暗号文を渡す。
func NextIV(ciphertext []byte) (domain.IV, error) {
	var iv domain.IV
	if len(ciphertext) < domain.BlockSize || len(ciphertext)%domain.BlockSize != 0 {
		return iv, domain.ErrBadParameters
	}
	copy(iv[:], ciphertext[len(ciphertext)-domain.BlockSize:])
	return iv, nil
}

func newMode(key *domain.SymmetricKey, iv *domain.IV, encrypt bool) (gocipher.BlockMode, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("creating block cipher: %w", err)
	}
	if encrypt {
		return gocipher.NewCBCEncrypter(block, iv[:]), nil
	}
	return gocipher.NewCBCDecrypter(block, iv[:]), nil
}

func crypt(mode gocipher.BlockMode, input, output []byte) (int, error) {
	if len(input)%domain.BlockSize != 0 {
		return 0, domain.ErrBadParameters
	}
	if len(output) < len(input) {
		return 0, domain.ErrShortBuffer
	}
	mode.CryptBlocks(output[:len(input)], input)
	return len(input), nil
}
