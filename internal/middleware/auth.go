// Package middleware は開発用バックエンドのHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/campuslink/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証済みPrincipalを格納するためのキー。
var principalContextKey = contextKey("principal")

// holderContextKey はロギングミドルウェアが用意するprincipalHolderのキー。
var holderContextKey = contextKey("principal_holder")

// principalHolder は内側のミドルウェアで認証されたユーザーIDを外側のロギングへ渡す。
type principalHolder struct {
	userID string
}

func contextWithHolder(ctx context.Context, h *principalHolder) context.Context {
	return context.WithValue(ctx, holderContextKey, h)
}

// TokenVerifier はベアラートークンを検証し、発行先のPrincipalを返す。
type TokenVerifier interface {
	Verify(token string) (*model.Principal, error)
}

// NewBearerMiddleware はAuthorizationヘッダーのベアラートークンを検証するミドルウェアを返す。
// トークンがない場合や無効な場合は401を返す。
func NewBearerMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "No token, authorization denied")
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil || principal == nil {
				WriteError(w, http.StatusUnauthorized, "Token is not valid")
				return
			}

			if h, ok := r.Context().Value(holderContextKey).(*principalHolder); ok {
				h.userID = principal.ID
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin は管理者以外のリクエストに403を返すミドルウェア。
// NewBearerMiddlewareの後に配置する。
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			WriteError(w, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		if !p.IsAdmin() {
			WriteError(w, http.StatusForbidden, "Access denied. Admin only.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// PrincipalFromContext はリクエストコンテキストから認証済みPrincipalを取得する。
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	return p, ok && p != nil
}

// ContextWithPrincipal はコンテキストにPrincipalを注入する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
