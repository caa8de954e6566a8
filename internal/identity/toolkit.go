package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL はIdentity Toolkit REST APIのベースURL。
	DefaultBaseURL = "https://identitytoolkit.googleapis.com/v1"
	// maxResponseSize はレスポンスボディの最大読み取りサイズ（1MB）。
	maxResponseSize = 1 << 20
)

// ToolkitClient はIdentity Toolkit REST APIのクライアント。
type ToolkitClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
}

// NewToolkitClient はToolkitClientを生成する。baseURLが空の場合はDefaultBaseURLを使う。
func NewToolkitClient(httpClient *http.Client, baseURL, apiKey string, logger *slog.Logger) *ToolkitClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ToolkitClient{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type updateRequest struct {
	IDToken           string `json:"idToken"`
	DisplayName       string `json:"displayName"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn はaccounts:signInWithPasswordを呼び出す。
func (c *ToolkitClient) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	var resp accountResponse
	if err := c.call(ctx, "accounts:signInWithPassword", passwordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp); err != nil {
		return nil, err
	}
	return &Identity{UID: resp.LocalID, Email: resp.Email, DisplayName: resp.DisplayName}, nil
}

// SignUp はaccounts:signUpでアカウントを作成し、accounts:updateで表示名を設定する。
func (c *ToolkitClient) SignUp(ctx context.Context, email, password, displayName string) (*Identity, error) {
	var created accountResponse
	if err := c.call(ctx, "accounts:signUp", passwordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &created); err != nil {
		return nil, err
	}

	ident := &Identity{UID: created.LocalID, Email: created.Email, DisplayName: created.DisplayName}
	if displayName == "" {
		return ident, nil
	}

	var updated accountResponse
	if err := c.call(ctx, "accounts:update", updateRequest{
		IDToken:           created.IDToken,
		DisplayName:       displayName,
		ReturnSecureToken: true,
	}, &updated); err != nil {
		// アカウントは作成済みのため、表示名の設定失敗はログのみとする
		c.logger.Warn("failed to set display name",
			slog.String("uid", created.LocalID),
			slog.String("error", err.Error()),
		)
		return ident, nil
	}
	ident.DisplayName = displayName
	return ident, nil
}

func (c *ToolkitClient) call(ctx context.Context, method string, body, out any) error {
	reqURL, err := url.Parse(c.baseURL + "/" + method)
	if err != nil {
		return fmt.Errorf("failed to parse identity endpoint: %w", err)
	}
	if c.apiKey != "" {
		q := reqURL.Query()
		q.Set("key", c.apiKey)
		reqURL.RawQuery = q.Encode()
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode identity request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create identity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("identity provider request failed",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read identity response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.Unmarshal(respBody, &errResp)
		c.logger.Warn("identity provider rejected request",
			slog.String("method", method),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", errResp.Error.Message),
		)
		return NewError(errResp.Error.Message)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse identity response: %w", err)
	}
	return nil
}
