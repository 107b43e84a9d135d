package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"key-manager-service/internal/domain"
)

// 前段の信頼されたフロントエンドが設定するヘッダー
const (
	HeaderClientLogin    = "X-Client-Login"
	HeaderClientIdentity = "X-Client-Identity"
)

type sessionKey struct{}

// Session はリクエストヘッダーから呼び出し元のセッションを解決してcontextに格納する。
// ヘッダーが欠落・不正な場合は公開ログイン（どのポリシーも通過しない）として扱う。
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromHeaders(r.Header)
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// WithSession はsessionを格納したcontextを返す。
func WithSession(ctx context.Context, session domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext はcontextのセッションを返す。無ければ公開ログインのセッション。
func SessionFromContext(ctx context.Context) domain.Session {
	if s, ok := ctx.Value(sessionKey{}).(domain.Session); ok {
		return s
	}
	return domain.Session{Login: domain.LoginPublic}
}

func sessionFromHeaders(h http.Header) domain.Session {
	login := domain.LoginType(strings.ToLower(strings.TrimSpace(h.Get(HeaderClientLogin))))
	switch login {
	case domain.LoginUser, domain.LoginTrustedApp:
	default:
		login = domain.LoginPublic
	}

	identity, err := uuid.Parse(strings.TrimSpace(h.Get(HeaderClientIdentity)))
	if err != nil {
		return domain.Session{Login: domain.LoginPublic}
	}
	return domain.Session{Login: login, Identity: identity}
}
