package domain

import "github.com/google/uuid"

// LoginType はセッション確立時のログイン方式を表す。
type LoginType string

const (
	// LoginPublic は認証されていない呼び出し元。
	LoginPublic LoginType = "public"
	// LoginUser はホスト上のユーザープロセス。
	LoginUser LoginType = "user"
	// LoginTrustedApp は信頼された隣接コンポーネント。ポリシーを通過できる唯一の方式。
	LoginTrustedApp LoginType = "trusted_app"
)

// Session は呼び出し元の識別情報を表す。セッションの間は不変。
type Session struct {
	Login    LoginType
	Identity uuid.UUID
}

// Caller は監査ログ用の呼び出し元表記を返す。
func (s Session) Caller() string {
	return string(s.Login) + ":" + s.Identity.String()
}
