package domain

import "fmt"

// Command はコマンドプロトコルの操作コードを表す。
type Command uint32

const (
	CommandGenerateSymmetricKey Command = iota
	CommandImportSymmetricKey
	CommandExportSymmetricKey
	CommandEncryptChunk
	CommandDecryptChunk
	CommandRandomBytes
	CommandHasSymmetricKey
	CommandGenerateAsymmetricKey
	CommandImportAsymmetricKey
	CommandExportAsymmetricPublic
	CommandSealModel
	CommandOpenModel
)

var commandNames = map[Command]string{
	CommandGenerateSymmetricKey:   "GENERATE_AES_KEY",
	CommandImportSymmetricKey:     "IMPORT_AES_KEY",
	CommandExportSymmetricKey:     "EXPORT_AES_KEY",
	CommandEncryptChunk:           "ENCRYPT_CHUNK",
	CommandDecryptChunk:           "DECRYPT_CHUNK",
	CommandRandomBytes:            "RANDOM_BYTES",
	CommandHasSymmetricKey:        "HAS_AES_KEY",
	CommandGenerateAsymmetricKey:  "GENERATE_RSA_KEY",
	CommandImportAsymmetricKey:    "IMPORT_RSA_KEY",
	CommandExportAsymmetricPublic: "EXPORT_RSA_PUBLIC",
	CommandSealModel:              "SEAL_MODEL",
	CommandOpenModel:              "OPEN_MODEL",
}

// String は監査ログ用のコマンド名を返す。
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("COMMAND_%d", uint32(c))
}

// Policy はコマンドが要求するアクセスポリシーを表す。
type Policy int

const (
	// PolicyPrincipalAOnly は主体Aのみに許可する。
	PolicyPrincipalAOnly Policy = iota
	// PolicyPrincipalAOrB は主体Aまたは主体Bに許可する。
	PolicyPrincipalAOrB
)

func (p Policy) String() string {
	switch p {
	case PolicyPrincipalAOnly:
		return "principal-a-only"
	case PolicyPrincipalAOrB:
		return "principal-a-or-b"
	default:
		return "unknown"
	}
}
