package domain

import "errors"

var (
	// ErrBadParameters は入力が不正（長さ不足、ブロック境界不一致、構造不正など）な場合のエラー。
	ErrBadParameters = errors.New("bad parameters")

	// ErrShortBuffer は呼び出し元の出力バッファが結果を格納するには小さすぎる場合のエラー。
	// 呼び出し元はより大きなバッファで再試行できる。
	ErrShortBuffer = errors.New("short buffer")

	// ErrAccessDenied はポリシー検査に失敗した場合のエラー。
	ErrAccessDenied = errors.New("access denied")

	// ErrCorruptObject は永続化されたオブジェクトが読み込み時の検証に失敗した場合のエラー。
	ErrCorruptObject = errors.New("corrupt object")

	// ErrBadState は必要な初期化（鍵の生成・インポート）前に操作が呼ばれた場合のエラー。
	ErrBadState = errors.New("bad state")

	// ErrNotSupported は未知のコマンドコードが指定された場合のエラー。
	ErrNotSupported = errors.New("not supported")

	// ErrItemNotFound は指定された識別子のオブジェクトがストアに存在しない場合のエラー。
	ErrItemNotFound = errors.New("item not found")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)

// エラー分類コード。トランスポートと監査ログで共通に使う。
const (
	CodeBadParameters = "BAD_PARAMETERS"
	CodeShortBuffer   = "SHORT_BUFFER"
	CodeAccessDenied  = "ACCESS_DENIED"
	CodeCorruptObject = "CORRUPT_OBJECT"
	CodeBadState      = "BAD_STATE"
	CodeNotSupported  = "NOT_SUPPORTED"
	CodeInternalError = "INTERNAL_ERROR"
)

// ErrorCode はerrの分類コードを返す。既知のエラーに当たらなければ CodeInternalError。
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrBadParameters):
		return CodeBadParameters
	case errors.Is(err, ErrShortBuffer):
		return CodeShortBuffer
	case errors.Is(err, ErrAccessDenied):
		return CodeAccessDenied
	case errors.Is(err, ErrCorruptObject):
		return CodeCorruptObject
	case errors.Is(err, ErrBadState):
		return CodeBadState
	case errors.Is(err, ErrNotSupported):
		return CodeNotSupported
	default:
		return CodeInternalError
	}
}
