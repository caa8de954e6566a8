// Package identity はアイデンティティプロバイダー（IdP）との境界を提供する。
// IdPはメールアドレスとパスワードを検証するだけで、バックエンドAPIの
// Credentialは発行しない。Credentialはauthパッケージがバックエンドから取得する。
package identity

import (
	"context"
	"strings"
)

// Identity はIdPが確認したユーザー情報。
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// Provider はIdPのインターフェース。
type Provider interface {
	// SignIn はメールアドレスとパスワードでサインインする。
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	// SignUp はアカウントを作成し、表示名を設定する。
	SignUp(ctx context.Context, email, password, displayName string) (*Identity, error)
}

// Error はIdPが返したエラー。Error()はユーザーに表示するメッセージのみを返す。
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// providerMessages はIdPのエラーコードと表示メッセージの対応。
var providerMessages = map[string]string{
	"EMAIL_NOT_FOUND":           "No account found with this email",
	"INVALID_PASSWORD":          "Incorrect password",
	"INVALID_LOGIN_CREDENTIALS": "Invalid email or password",
	"USER_DISABLED":             "This account has been disabled",
	"EMAIL_EXISTS":              "An account with this email already exists",
	"INVALID_EMAIL":             "Please enter a valid email address",
	"MISSING_PASSWORD":          "Please enter a password",
	"WEAK_PASSWORD":             "Password should be at least 6 characters",
}

// NewError はIdPのエラーコードからErrorを生成する。
// "WEAK_PASSWORD : Password should be at least 6 characters" のような
// 詳細付きのコードは先頭のコード部分で判定する。
func NewError(code string) *Error {
	base, _, _ := strings.Cut(code, " ")
	base = strings.TrimSpace(base)
	if msg, ok := providerMessages[base]; ok {
		return &Error{Code: base, Message: msg}
	}
	if base == "" {
		return &Error{Code: "UNKNOWN", Message: "Authentication failed"}
	}
	return &Error{Code: base, Message: "Authentication failed (" + base + ")"}
}
