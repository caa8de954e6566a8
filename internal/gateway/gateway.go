package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/campuslink/internal/metrics"
)

// maxResponseSize はレスポンスボディの最大読み取りサイズ（10MB）。
const maxResponseSize = 10 * 1024 * 1024

// SessionStore はゲートウェイが参照するセッションの操作。
// 401を受けた場合のみInvalidateCredentialで状態を変更する。
type SessionStore interface {
	Credential() string
	InvalidateCredential(ctx context.Context, credential string) (bool, error)
}

// InvalidationHook は401による強制ログアウトの後に呼ばれる。
// 認証が必要な画面の再読み込みに相当する処理を登録する。
type InvalidationHook func(ctx context.Context)

// Gateway はバックエンドAPIへのリクエストを送出し、失敗を分類する。
// リトライやキューイングは行わない。
type Gateway struct {
	baseURL      string
	httpClient   *http.Client
	session      SessionStore
	metrics      metrics.MetricsCollector
	logger       *slog.Logger
	onInvalidate InvalidationHook
}

// New はGatewayを生成する。collectorがnilの場合はメトリクスを記録しない。
func New(baseURL string, httpClient *http.Client, session SessionStore, collector metrics.MetricsCollector, logger *slog.Logger) *Gateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		session:    session,
		metrics:    collector,
		logger:     logger,
	}
}

// OnInvalidate は強制ログアウト後に呼ばれるフックを登録する。
func (g *Gateway) OnInvalidate(hook InvalidationHook) {
	g.onInvalidate = hook
}

// Classify はClassifyOutcomeで分類し、401の場合はセッションを無効化する。
// 他の分類では何も変更しない。
func (g *Gateway) Classify(ctx context.Context, o Outcome) Classification {
	c := ClassifyOutcome(o)
	if c.Kind != KindUnauthorized {
		return c
	}

	loggedOut, err := g.session.InvalidateCredential(ctx, o.Credential)
	if err != nil {
		g.logger.Error("failed to clear session after unauthorized response",
			slog.String("error", err.Error()),
		)
	}
	if loggedOut {
		g.metrics.RecordForcedLogout()
		g.logger.Warn("session invalidated by unauthorized response")
		if g.onInvalidate != nil {
			g.onInvalidate(ctx)
		}
	}
	return c
}

// Do は現在のCredentialを付与してリクエストを送り、成功時はoutにJSONをデコードする。
// 未ログインの場合は送信せずKindUnauthorizedのErrorを返す。
// 失敗時は分類済みの*Errorを返す。
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	credential := g.session.Credential()
	headers, err := BuildAuthHeaders(credential)
	if err != nil {
		return err
	}
	return g.dispatch(ctx, method, path, headers, credential, body, out, true)
}

// DoPublic はCredentialを付与せずにリクエストを送る。
// 認証エンドポイント用で、401を受けてもセッションは変更しない。
func (g *Gateway) DoPublic(ctx context.Context, method, path string, body, out any) error {
	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	return g.dispatch(ctx, method, path, headers, "", body, out, false)
}

// GetList は一覧エンドポイントを取得し、NormalizeListResponseで正規化する。
func (g *Gateway) GetList(ctx context.Context, path, noun string) (ListResult, error) {
	var raw json.RawMessage
	if err := g.Do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return ListResult{}, err
	}
	return NormalizeListResponse(raw, noun)
}

func (g *Gateway) dispatch(ctx context.Context, method, path string, headers http.Header, credential string, body, out any, protected bool) error {
	start := time.Now()

	status, respBody, sendErr := g.send(ctx, method, path, headers, body)
	duration := time.Since(start)

	if status >= 200 && status < 300 {
		if sendErr != nil {
			c := Classification{Kind: KindUnexpected, Message: MsgInvalidFormat}
			g.metrics.RecordGatewayRequest(method, c.Kind.String(), duration)
			g.logger.Warn("failed to read response body",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", status),
				slog.String("error", sendErr.Error()),
			)
			return &Error{Classification: c, StatusCode: status, Err: sendErr}
		}
		g.metrics.RecordGatewayRequest(method, "ok", duration)
		g.logger.Debug("request completed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", duration),
		)
		return decodeInto(respBody, out)
	}

	outcome := Outcome{StatusCode: status, Body: respBody, Err: sendErr, Credential: credential}
	var c Classification
	if protected {
		c = g.Classify(ctx, outcome)
	} else {
		c = ClassifyOutcome(outcome)
	}

	g.metrics.RecordGatewayRequest(method, c.Kind.String(), duration)
	attrs := []any{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("classification", c.Kind.String()),
		slog.Duration("duration", duration),
	}
	if sendErr != nil {
		attrs = append(attrs, slog.String("error", sendErr.Error()))
	}
	g.logger.Warn("request failed", attrs...)

	return &Error{Classification: c, StatusCode: status, Err: sendErr}
}

// send はリクエストを1回だけ送信する。サーバーが応答した場合はステータスとボディを返す。
// ボディの読み取りに失敗した場合はステータスと読み取りエラーを返す。
func (g *Gateway) send(ctx context.Context, method, path string, headers http.Header, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func decodeInto(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{
			Classification: Classification{Kind: KindUnexpected, Message: MsgInvalidFormat},
			Err:            err,
		}
	}
	return nil
}
