// Package policy は呼び出し元の識別子をコマンドのアクセスポリシーと照合する。
package policy

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"key-manager-service/internal/domain"
)

// Engine は設定された参照識別子に基づいてポリシーを評価する。
// 参照識別子は評価のたびに解析するため、不正な設定は最初の呼び出しで表面化する。
type Engine struct {
	principalA string
	principalB string
}

// NewEngine は主体A・主体Bの参照識別子（UUID文字列）からEngineを生成する。
func NewEngine(principalA, principalB string) *Engine {
	return &Engine{
		principalA: principalA,
		principalB: principalB,
	}
}

// Authorize はセッションがpolicyを満たすか判定する。
//
// 参照識別子が解析できない場合は設定不備としてErrBadParametersを返す。
// それ以外の不一致はすべてErrAccessDeniedで、どの条件で失敗したかによって
// 処理内容が変わらないよう、すべての条件を評価してから判定する。
func (e *Engine) Authorize(session domain.Session, policy domain.Policy) error {
	allowed, err := e.allowSet(policy)
	if err != nil {
		return err
	}

	trusted := subtle.ConstantTimeCompare([]byte(session.Login), []byte(domain.LoginTrustedApp))
	caller := []byte(session.Identity.String())
	match := 0
	for _, id := range allowed {
		match |= subtle.ConstantTimeCompare(caller, []byte(id.String()))
	}

	if trusted&match != 1 {
		return domain.ErrAccessDenied
	}
	return nil
}

func (e *Engine) allowSet(policy domain.Policy) ([]uuid.UUID, error) {
	a, err := parseReference(e.principalA)
	if err != nil {
		return nil, err
	}
	switch policy {
	case domain.PolicyPrincipalAOnly:
		return []uuid.UUID{a}, nil
	case domain.PolicyPrincipalAOrB:
		b, err := parseReference(e.principalB)
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{a, b}, nil
	default:
		return nil, fmt.Errorf("%w: unknown policy %d", domain.ErrBadParameters, policy)
	}
}

func parseReference(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid reference identifier: %v", domain.ErrBadParameters, err)
	}
	return id, nil
}
