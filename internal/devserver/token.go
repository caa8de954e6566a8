// Package devserver はCampusLinkのREST APIとIdPをメモリ上で実装する開発用バックエンドを提供する。
// クライアントをホスト型バックエンドなしでエンドツーエンドに動かすために使う。
package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/campuslink/internal/model"
)

// ErrInvalidToken はCredentialの検証に失敗した場合のエラー。
var ErrInvalidToken = errors.New("invalid token")

// claims はCredentialに埋め込むJWTクレーム。
type claims struct {
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer はHS256署名のCredentialを発行・検証する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。ttlが0以下の場合は24時間とする。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue はユーザーに対するCredentialを発行する。
func (t *TokenIssuer) Issue(p model.Principal) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: p.Email,
		Name:  p.Name,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はCredentialを検証し、埋め込まれたPrincipalを返す。
// middleware.TokenVerifierを満たす。
func (t *TokenIssuer) Verify(raw string) (*model.Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &model.Principal{ID: c.Subject, Email: c.Email, Name: c.Name, Role: c.Role}, nil
}
