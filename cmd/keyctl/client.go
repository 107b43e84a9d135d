package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"key-manager-service/internal/domain"
	"key-manager-service/internal/handler"
	"key-manager-service/internal/middleware"
)

// apiError はサーバーが返したコマンドエラー。
type apiError struct {
	Status  int
	Code    string
	Message string
	Params  []handler.ParamJSON
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// commandClient はコマンドAPIのHTTPクライアント。
type commandClient struct {
	baseURL  string
	http     *http.Client
	login    string
	identity string
}

// invoke はコマンドを1回実行する。
func (c *commandClient) invoke(ctx context.Context, cmd domain.Command, params []handler.ParamJSON) ([]handler.ParamJSON, error) {
	body, err := json.Marshal(handler.CommandRequest{Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/commands/%d", strings.TrimRight(c.baseURL, "/"), uint32(cmd))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderClientLogin, c.login)
	req.Header.Set(middleware.HeaderClientIdentity, c.identity)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp handler.CommandErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Code == "" {
			return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil, &apiError{
			Status:  resp.StatusCode,
			Code:    errResp.Code,
			Message: errResp.Message,
			Params:  errResp.Params,
		}
	}

	var result handler.CommandResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return result.Params, nil
}

// invokeGrowing はSHORT_BUFFERが返った場合、通知されたサイズに出力容量を広げて1回だけ再試行する。
func (c *commandClient) invokeGrowing(ctx context.Context, cmd domain.Command, params []handler.ParamJSON) ([]handler.ParamJSON, error) {
	result, err := c.invoke(ctx, cmd, params)
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Code != domain.CodeShortBuffer {
		return result, err
	}
	for i := range params {
		if i < len(apiErr.Params) && apiErr.Params[i].Size > params[i].Size {
			params[i].Size = apiErr.Params[i].Size
		}
	}
	return c.invoke(ctx, cmd, params)
}
