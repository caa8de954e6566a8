// Package session はクライアントの認証状態（ログイン中のPrincipalとCredential）を管理する。
//
// Storeはアプリケーションのルートで1つ生成し、参照を各コンシューマに渡す。
// 状態の書き込みはHydrate / Login / Logout（およびゲートウェイによる強制ログアウト）のみが行う。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/campuslink/internal/model"
	"github.com/hitoshi/campuslink/internal/storage"
)

// State はセッションの状態を表す。
type State int

const (
	// StateHydrating は起動直後、永続ストレージからの復元が未完了の状態。
	// この間は認証が必要な画面の出し分けを判断してはならない。
	StateHydrating State = iota
	// StateAnonymous は未ログイン状態。
	StateAnonymous
	// StateAuthenticated はPrincipalとCredentialが揃ったログイン状態。
	StateAuthenticated
)

// String は状態名を返す。
func (s State) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrMissingCredential はCredentialなしでLoginが呼ばれた場合のエラー。
	ErrMissingCredential = errors.New("no credential provided for login")
	// ErrHydrating は復元完了前にLoginが呼ばれた場合のエラー。
	ErrHydrating = errors.New("session is still hydrating")
)

// Store はプロセス全体の認証状態を保持する。
type Store struct {
	storage storage.Store
	logger  *slog.Logger

	mu         sync.RWMutex
	principal  *model.Principal
	credential string
	hydrating  bool
}

// NewStore はHydrating状態のStoreを生成する。
func NewStore(st storage.Store, logger *slog.Logger) *Store {
	return &Store{
		storage:   st,
		logger:    logger,
		hydrating: true,
	}
}

// Hydrate は永続ストレージからPrincipalとCredentialを復元する。
//
// どちらかが欠けている場合、PrincipalがJSONオブジェクトとして解釈できない場合、
// ストレージの読み取りに失敗した場合はAnonymousとし、残っているスロットを削除する。
// いずれの場合もhydratingはfalseになる。2回目以降の呼び出しはストレージを読まず、
// 現在の状態を返す。
func (s *Store) Hydrate(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hydrating {
		return s.stateLocked()
	}

	principal, credential, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("discarding persisted session",
			slog.String("reason", err.Error()),
		)
		s.purgeLocked(ctx)
		s.principal = nil
		s.credential = ""
	} else {
		s.principal = principal
		s.credential = credential
	}

	s.hydrating = false

	state := s.stateLocked()
	s.logger.Debug("session hydrated", slog.String("state", state.String()))
	return state
}

// load はストレージから両スロットを読み取り検証する。
// 両方とも存在しない場合は(nil, "", nil)を返す。
func (s *Store) load(ctx context.Context) (*model.Principal, string, error) {
	rawPrincipal, hasPrincipal, err := s.storage.Get(ctx, storage.SlotPrincipal)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read principal: %w", err)
	}
	credential, hasCredential, err := s.storage.Get(ctx, storage.SlotCredential)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read credential: %w", err)
	}

	hasPrincipal = hasPrincipal && rawPrincipal != ""
	hasCredential = hasCredential && credential != ""

	switch {
	case !hasPrincipal && !hasCredential:
		return nil, "", nil
	case !hasPrincipal:
		return nil, "", fmt.Errorf("credential without principal")
	case !hasCredential:
		return nil, "", fmt.Errorf("principal without credential")
	}

	var principal *model.Principal
	if err := json.Unmarshal([]byte(rawPrincipal), &principal); err != nil {
		return nil, "", fmt.Errorf("malformed principal: %w", err)
	}
	if principal == nil {
		return nil, "", fmt.Errorf("malformed principal: null")
	}
	principal.Role = model.NormalizeRole(principal.Role)

	return principal, credential, nil
}

// Login はPrincipalとCredentialを永続化し、メモリ上の状態を更新する。
// credentialが空の場合は何もせずErrMissingCredentialを返す。
// ログイン中に呼ばれた場合は上書きする（再ログイン / プロフィール更新）。
func (s *Store) Login(ctx context.Context, principal model.Principal, credential string) error {
	if credential == "" {
		s.logger.Warn("login rejected: no credential provided",
			slog.String("email", principal.Email),
		)
		return ErrMissingCredential
	}

	principal.Role = model.NormalizeRole(principal.Role)

	encoded, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("failed to encode principal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hydrating {
		return ErrHydrating
	}

	if err := s.storage.SetAll(ctx, map[string]string{
		storage.SlotPrincipal:  string(encoded),
		storage.SlotCredential: credential,
	}); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	p := principal
	s.principal = &p
	s.credential = credential

	s.logger.Info("login successful",
		slog.String("user_id", principal.ID),
		slog.String("role", string(principal.Role)),
	)
	return nil
}

// Logout はメモリ上と永続ストレージのセッションを無条件に削除する。
// 未ログイン状態で呼んでも安全（冪等）。
// ストレージの削除に失敗した場合もメモリ上の状態はAnonymousになり、エラーを返す。
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutLocked(ctx)
}

// InvalidateCredential はcredentialが現在のCredentialと一致する場合のみログアウトする。
// credentialが空の場合は無条件にログアウトする。
// 古いCredentialで送ったリクエストの401が、その後の再ログインを取り消さないようにするために使う。
// ログアウトした場合はtrueを返す。
func (s *Store) InvalidateCredential(ctx context.Context, credential string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if credential != "" && s.credential != "" && s.credential != credential {
		s.logger.Info("ignoring invalidation for stale credential")
		return false, nil
	}
	return true, s.logoutLocked(ctx)
}

func (s *Store) logoutLocked(ctx context.Context) error {
	wasAuthenticated := s.principal != nil
	s.principal = nil
	s.credential = ""

	if err := s.storage.Delete(ctx, storage.SlotPrincipal, storage.SlotCredential); err != nil {
		s.logger.Error("failed to clear persisted session",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}

	if wasAuthenticated {
		s.logger.Info("logout successful")
	}
	return nil
}

func (s *Store) purgeLocked(ctx context.Context) {
	if err := s.storage.Delete(ctx, storage.SlotPrincipal, storage.SlotCredential); err != nil {
		s.logger.Error("failed to purge persisted session",
			slog.String("error", err.Error()),
		)
	}
}

// IsAuthenticated はPrincipalと空でないCredentialが揃っている場合にtrueを返す。
// 呼び出しのたびに現在の状態から計算する。
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal != nil && s.credential != ""
}

// State は現在の状態を返す。
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	switch {
	case s.hydrating:
		return StateHydrating
	case s.principal != nil && s.credential != "":
		return StateAuthenticated
	default:
		return StateAnonymous
	}
}

// Hydrating は復元が未完了の場合にtrueを返す。
func (s *Store) Hydrating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrating
}

// Principal は現在のPrincipalのコピーを返す。未ログインの場合はnil。
func (s *Store) Principal() *model.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return nil
	}
	p := *s.principal
	return &p
}

// Credential は現在のCredentialを返す。未ログインの場合は空文字列。
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// DisplayName は表示用のユーザー名を返す。未ログインの場合は "User"。
func (s *Store) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.DeriveDisplayName(s.principal)
}
