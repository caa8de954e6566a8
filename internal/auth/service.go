// Package auth はログイン・サインアップ・ログアウトのフローを提供する。
//
// IdPでメールアドレスとパスワードを検証した後、バックエンドから
// Credentialを取得し、セッションに保存する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/campuslink/internal/identity"
	"github.com/hitoshi/campuslink/internal/model"
)

// バックエンドの認証エンドポイント。
const (
	LoginPath  = "/api/auth/login"
	SignupPath = "/api/auth/signup"
)

var (
	// ErrFieldsRequired は必須項目が未入力の場合のエラー。
	ErrFieldsRequired = model.ErrFieldsRequired
	// ErrInvalidRole はロールがstudent/admin以外の場合のエラー。
	ErrInvalidRole = errors.New("Role must be student or admin")
)

// Gateway は認証エンドポイントの呼び出しに使う公開リクエストの送出口。
type Gateway interface {
	DoPublic(ctx context.Context, method, path string, body, out any) error
}

// Session はログイン状態の保存先。
type Session interface {
	Login(ctx context.Context, principal model.Principal, credential string) error
	Logout(ctx context.Context) error
}

// Service は認証に関するフローを提供する。
type Service struct {
	idp     identity.Provider
	gateway Gateway
	session Session
	logger  *slog.Logger
}

// NewService はServiceを生成する。
func NewService(idp identity.Provider, gw Gateway, sess Session, logger *slog.Logger) *Service {
	return &Service{
		idp:     idp,
		gateway: gw,
		session: sess,
		logger:  logger,
	}
}

// SignupRequest はサインアップの入力。
type SignupRequest struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type loginBody struct {
	Email string `json:"email"`
}

type signupBody struct {
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// Login はIdPでサインインし、バックエンドからCredentialを取得してセッションを開始する。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Principal, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrFieldsRequired
	}

	ident, err := s.idp.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	var resp model.AuthResponse
	if err := s.gateway.DoPublic(ctx, http.MethodPost, LoginPath, loginBody{Email: ident.Email}, &resp); err != nil {
		return nil, err
	}

	if resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "Login failed - no token received"
		}
		return nil, errors.New(msg)
	}

	principal := loginPrincipal(ident, &resp)
	if err := s.session.Login(ctx, principal, resp.Token); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	s.logger.Info("user logged in",
		slog.String("user_id", principal.ID),
		slog.String("role", string(principal.Role)),
	)
	return &principal, nil
}

// loginPrincipal はバックエンドの応答を優先し、欠けている項目をIdPの情報で補う。
func loginPrincipal(ident *identity.Identity, resp *model.AuthResponse) model.Principal {
	p := model.Principal{
		ID:    resp.ID,
		Email: ident.Email,
		Name:  resp.Name,
		Role:  model.RoleStudent,
	}
	if p.ID == "" {
		p.ID = ident.UID
	}
	if p.Name == "" {
		p.Name = ident.DisplayName
	}
	if p.Name == "" {
		p.Name = model.DefaultDisplayName
	}
	if role, ok := model.ParseRole(resp.Role); ok {
		p.Role = role
	}
	return p
}

// Signup はIdPでアカウントを作成し、バックエンドにユーザーを登録してセッションを開始する。
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*model.Principal, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, ErrFieldsRequired
	}

	role := model.RoleStudent
	if req.Role != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			return nil, ErrInvalidRole
		}
		role = parsed
	}

	ident, err := s.idp.SignUp(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return nil, err
	}

	var resp model.AuthResponse
	body := signupBody{Name: req.Name, Email: req.Email, Role: role}
	if err := s.gateway.DoPublic(ctx, http.MethodPost, SignupPath, body, &resp); err != nil {
		return nil, err
	}

	if resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "Signup failed - no token received"
		}
		return nil, errors.New(msg)
	}

	principal := model.Principal{
		ID:    resp.ID,
		Email: resp.Email,
		Name:  resp.Name,
		Role:  role,
	}
	if principal.ID == "" {
		principal.ID = ident.UID
	}
	if principal.Email == "" {
		principal.Email = ident.Email
	}
	if principal.Name == "" {
		principal.Name = req.Name
	}
	if parsed, ok := model.ParseRole(resp.Role); ok {
		principal.Role = parsed
	}

	if err := s.session.Login(ctx, principal, resp.Token); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("user_id", principal.ID),
		slog.String("role", string(principal.Role)),
	)
	return &principal, nil
}

// Logout はセッションを終了する。
func (s *Service) Logout(ctx context.Context) error {
	return s.session.Logout(ctx)
}
