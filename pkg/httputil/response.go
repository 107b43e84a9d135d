// Package httputil はHTTPレスポンス生成のユーティリティを提供する。
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"key-manager-service/internal/domain"
)

// ErrorResponse はエラーレスポンスの形式。
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON はJSONレスポンスを返す。
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// ヘッダーは既に送信済みのため、ログ出力のみ
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// Error はエラーレスポンスを返す。
func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

var statusByCode = map[string]int{
	domain.CodeBadParameters: http.StatusBadRequest,
	domain.CodeShortBuffer:   http.StatusUnprocessableEntity,
	domain.CodeAccessDenied:  http.StatusForbidden,
	domain.CodeCorruptObject: http.StatusInternalServerError,
	domain.CodeBadState:      http.StatusConflict,
	domain.CodeNotSupported:  http.StatusNotFound,
	domain.CodeInternalError: http.StatusInternalServerError,
}

var messageByCode = map[string]string{
	domain.CodeBadParameters: "bad parameters",
	domain.CodeShortBuffer:   "output buffer too small",
	domain.CodeAccessDenied:  "access denied",
	domain.CodeCorruptObject: "stored object is corrupt",
	domain.CodeBadState:      "key has not been initialized",
	domain.CodeNotSupported:  "unsupported command",
	domain.CodeInternalError: "internal server error",
}

// Status はエラー分類コードに対応するHTTPステータスを返す。
func Status(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ErrorFrom はerrを分類してエラーレスポンスを返す。
// 内部エラーの詳細はレスポンスに含めない。
func ErrorFrom(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)
	Error(w, Status(code), code, messageByCode[code])
}
