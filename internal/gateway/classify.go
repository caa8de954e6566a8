// Package gateway はバックエンドAPIへのリクエスト送出と失敗の分類を一元化する。
//
// 各画面（CLIコマンド）はステータスコードを個別に解釈せず、
// Classifyが返すClassificationのメッセージだけを表示する。
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
)

// Kind はリクエスト結果の分類。
type Kind int

const (
	// KindUnexpected は他のどれにも当てはまらない失敗。
	KindUnexpected Kind = iota
	// KindUnauthorized は401。セッションを無効化する唯一の分類。
	KindUnauthorized
	// KindBadRequest は400。
	KindBadRequest
	// KindForbidden は403。
	KindForbidden
	// KindNotFound は404。
	KindNotFound
	// KindServerError は500。
	KindServerError
	// KindNetworkUnreachable はサーバー応答のない通信失敗。
	KindNetworkUnreachable
	// KindEmptyResult は一覧が空であることを示す情報。エラーではない。
	KindEmptyResult
)

// String はメトリクスやログのラベルに使う分類名を返す。
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindServerError:
		return "server_error"
	case KindNetworkUnreachable:
		return "network_unreachable"
	case KindEmptyResult:
		return "empty_result"
	default:
		return "unexpected"
	}
}

// 表示メッセージ。
const (
	MsgUnauthorized       = "Session expired. Please login again."
	MsgBadRequest         = "Invalid data provided"
	MsgForbidden          = "You don't have permission to perform this action"
	MsgNotFound           = "Service not found. Please contact administrator."
	MsgServerError        = "Server error. Please try again later."
	MsgStatusFallback     = "An error occurred"
	MsgNetworkUnreachable = "Cannot connect to server. Please check your internet connection."
	MsgUnexpected         = "An unexpected error occurred. Please try again."
	MsgLoginRequired      = "Please login to continue"
	MsgInvalidFormat      = "Invalid data format received"
)

// Classification は分類とユーザー向けメッセージの組。
type Classification struct {
	Kind    Kind
	Message string
}

// Outcome は完了または失敗したリクエストの結果。
// サーバーが応答しなかった場合StatusCodeは0でErrに送信エラーが入る。
type Outcome struct {
	StatusCode int
	Body       []byte
	Err        error

	// Credential はリクエストに付与したCredential。
	// 401で古いCredentialのセッションだけを無効化するために使う。
	Credential string
}

// Error はゲートウェイ経由の失敗を表すエラー。Error()は表示メッセージを返す。
type Error struct {
	Classification
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf はerrがゲートウェイのErrorであればその分類を返す。
func KindOf(err error) (Kind, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind, true
	}
	return KindUnexpected, false
}

// ClassifyOutcome はリクエスト結果を分類する純粋関数。副作用を持たない。
func ClassifyOutcome(o Outcome) Classification {
	if o.StatusCode == 0 {
		if errors.Is(o.Err, context.Canceled) {
			return Classification{Kind: KindUnexpected, Message: MsgUnexpected}
		}
		if isTransportError(o.Err) {
			return Classification{Kind: KindNetworkUnreachable, Message: MsgNetworkUnreachable}
		}
		return Classification{Kind: KindUnexpected, Message: MsgUnexpected}
	}

	switch o.StatusCode {
	case http.StatusUnauthorized:
		return Classification{Kind: KindUnauthorized, Message: MsgUnauthorized}
	case http.StatusBadRequest:
		return Classification{Kind: KindBadRequest, Message: serverMessage(o.Body, MsgBadRequest)}
	case http.StatusForbidden:
		return Classification{Kind: KindForbidden, Message: MsgForbidden}
	case http.StatusNotFound:
		return Classification{Kind: KindNotFound, Message: MsgNotFound}
	case http.StatusInternalServerError:
		return Classification{Kind: KindServerError, Message: MsgServerError}
	default:
		return Classification{Kind: KindUnexpected, Message: serverMessage(o.Body, MsgStatusFallback)}
	}
}

func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// serverMessage はレスポンスボディの {"message": "..."} を取り出す。
// 取り出せない場合や空の場合はfallbackを返す。
func serverMessage(body []byte, fallback string) string {
	if len(body) == 0 {
		return fallback
	}
	var payload struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	if msg, ok := payload.Message.(string); ok && msg != "" {
		return msg
	}
	return fallback
}

// BuildAuthHeaders はベアラーCredentialとContent-Typeを含むヘッダーを返す。
// credentialが空の場合はKindUnauthorizedのErrorを返す。
func BuildAuthHeaders(credential string) (http.Header, error) {
	if credential == "" {
		return nil, &Error{
			Classification: Classification{Kind: KindUnauthorized, Message: MsgLoginRequired},
		}
	}
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+credential)
	h.Set("Content-Type", "application/json")
	return h, nil
}
