// Package handler はHTTPハンドラを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"key-manager-service/internal/domain"
	"key-manager-service/internal/middleware"
	"key-manager-service/pkg/httputil"
)

// Invoker はコマンドを認可して実行する。
type Invoker interface {
	Invoke(ctx context.Context, session domain.Session, code uint32, params *domain.Params) error
}

// ParamJSON は1つのパラメータスロットのJSON表現。dataはbase64で表現される。
// メモリ参照の出力では、リクエストのsizeが容量、レスポンスのsizeが書き込み長。
type ParamJSON struct {
	Type string `json:"type"`
	Data []byte `json:"data,omitempty"`
	Size int    `json:"size,omitempty"`
	A    uint32 `json:"a,omitempty"`
	B    uint32 `json:"b,omitempty"`
}

// CommandRequest はコマンド実行リクエストの形式。
type CommandRequest struct {
	Params []ParamJSON `json:"params"`
}

// CommandResponse はコマンド実行結果の形式。
type CommandResponse struct {
	Params []ParamJSON `json:"params"`
}

// CommandErrorResponse はコマンド失敗時の形式。
// SHORT_BUFFERの場合、paramsのsizeに必要なバイト数が入る。
type CommandErrorResponse struct {
	httputil.ErrorResponse
	Params []ParamJSON `json:"params,omitempty"`
}

// CommandHandler はコマンドプロトコルをHTTPで公開する。
type CommandHandler struct {
	invoker       Invoker
	maxBufferSize int
}

// NewCommandHandler は新しいCommandHandlerを生成する。
func NewCommandHandler(invoker Invoker, maxBufferSize int) *CommandHandler {
	return &CommandHandler{invoker: invoker, maxBufferSize: maxBufferSize}
}

// Invoke は POST /v1/commands/{code} を処理する。
func (h *CommandHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.ParseUint(chi.URLParam(r, "code"), 10, 32)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, domain.CodeBadParameters, "invalid command code")
		return
	}

	// base64による膨張分を見込んで上限を設定
	limit := int64(domain.ParamCount*(h.maxBufferSize/3*4+4) + 4096)
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.Error(w, http.StatusBadRequest, domain.CodeBadParameters, "invalid request body")
		return
	}

	params, err := h.toParams(req.Params)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, domain.CodeBadParameters, err.Error())
		return
	}

	session := middleware.SessionFromContext(r.Context())
	if err := h.invoker.Invoke(r.Context(), session, uint32(code), params); err != nil {
		errCode := domain.ErrorCode(err)
		if errCode == domain.CodeInternalError {
			slog.ErrorContext(r.Context(), "command failed", "command", domain.Command(code).String(), "error", err)
		}
		resp := CommandErrorResponse{
			ErrorResponse: httputil.ErrorResponse{Code: errCode, Message: errorMessage(errCode)},
		}
		if errCode == domain.CodeShortBuffer {
			resp.Params = fromParams(params)
		}
		httputil.JSON(w, httputil.Status(errCode), resp)
		return
	}

	httputil.JSON(w, http.StatusOK, CommandResponse{Params: fromParams(params)})
}

func errorMessage(code string) string {
	switch code {
	case domain.CodeShortBuffer:
		return "output buffer too small; retry with the reported size"
	case domain.CodeInternalError:
		return "internal server error"
	default:
		return code
	}
}

func (h *CommandHandler) toParams(in []ParamJSON) (*domain.Params, error) {
	if len(in) > domain.ParamCount {
		return nil, fmt.Errorf("at most %d params are allowed", domain.ParamCount)
	}
	params := &domain.Params{}
	for i := range params {
		params[i].Type = domain.ParamNone
	}
	for i, pj := range in {
		p := domain.Param{Type: domain.ParamType(pj.Type)}
		switch p.Type {
		case "", domain.ParamNone:
			p.Type = domain.ParamNone
		case domain.ParamValueInput, domain.ParamValueOutput, domain.ParamValueInout:
			p.A, p.B = pj.A, pj.B
		case domain.ParamMemrefInput, domain.ParamMemrefOutput, domain.ParamMemrefInout:
			if len(pj.Data) > h.maxBufferSize || pj.Size > h.maxBufferSize || pj.Size < 0 {
				return nil, fmt.Errorf("param %d exceeds the maximum buffer size", i)
			}
			capacity := len(pj.Data)
			if p.Type != domain.ParamMemrefInput && pj.Size > capacity {
				capacity = pj.Size
			}
			p.Buffer = make([]byte, capacity)
			copy(p.Buffer, pj.Data)
		default:
			return nil, fmt.Errorf("param %d has unknown type %q", i, pj.Type)
		}
		params[i] = p
	}
	return params, nil
}

func fromParams(params *domain.Params) []ParamJSON {
	out := make([]ParamJSON, 0, domain.ParamCount)
	for _, p := range params {
		pj := ParamJSON{Type: string(p.Type)}
		switch p.Type {
		case domain.ParamValueOutput, domain.ParamValueInout:
			pj.A, pj.B = p.A, p.B
		case domain.ParamMemrefOutput, domain.ParamMemrefInout:
			pj.Size = p.Size
			if p.Size <= len(p.Buffer) {
				pj.Data = p.Buffer[:p.Size]
			}
		}
		out = append(out, pj)
	}
	return out
}
