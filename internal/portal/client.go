// Package portal はキャンパスポータルの各リソース（お知らせ、苦情、落とし物、
// 時間割、アンケート、テックニュース）への型付きクライアントを提供する。
//
// すべてのリクエストはgatewayを経由し、失敗はgateway.Errorとして返る。
// 一覧の取得結果が空の場合はList.Noticeに案内文が入る。
package portal

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/campuslink/internal/gateway"
)

// Requester はポータルが利用するゲートウェイの操作。
type Requester interface {
	Do(ctx context.Context, method, path string, body, out any) error
	GetList(ctx context.Context, path, noun string) (gateway.ListResult, error)
}

// List は型付きの一覧。
type List[T any] struct {
	Items  []T
	Notice *gateway.Classification
}

// Client はポータルAPIのクライアント。
type Client struct {
	gw      Requester
	logger  *slog.Logger
	actions actionSet
}

// NewClient はClientを生成する。
func NewClient(gw Requester, logger *slog.Logger) *Client {
	return &Client{gw: gw, logger: logger}
}

// Action は指定した操作名のActionを返す。
// CLIや画面は送信ボタンの無効化判定に使う。
func (c *Client) Action(name string) *Action {
	return c.actions.get(name)
}

func fetchList[T any](ctx context.Context, gw Requester, path, noun string) (*List[T], error) {
	raw, err := gw.GetList(ctx, path, noun)
	if err != nil {
		return nil, err
	}
	items, err := gateway.DecodeList[T](raw)
	if err != nil {
		return nil, err
	}
	return &List[T]{Items: items, Notice: raw.Notice}, nil
}

// submit は操作名ごとの二重送信を防いだ上でリクエストを送る。
func (c *Client) submit(ctx context.Context, action, method, path string, body, out any) error {
	return c.Action(action).Run(ctx, func(ctx context.Context) error {
		if err := c.gw.Do(ctx, method, path, body, out); err != nil {
			return err
		}
		c.logger.Debug("portal action completed",
			slog.String("action", action),
			slog.String("method", method),
			slog.String("path", path),
		)
		return nil
	})
}

func resourcePath(base, id string) string {
	return base + "/" + url.PathEscape(id)
}

func deleteResource(ctx context.Context, c *Client, action, base, id string) error {
	return c.submit(ctx, action+":"+id, http.MethodDelete, resourcePath(base, id), nil, nil)
}
