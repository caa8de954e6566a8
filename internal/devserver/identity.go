package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// minPasswordLength はIdPが受け付けるパスワードの最小長。
const minPasswordLength = 6

// account はIdPスタブのアカウント。
type account struct {
	LocalID      string
	Email        string
	PasswordHash []byte
	DisplayName  string
}

// IdentityStub はIdentity Toolkit REST APIの最小限のスタブ。
// accounts:signInWithPassword、accounts:signUp、accounts:updateを提供する。
type IdentityStub struct {
	mu       sync.Mutex
	accounts map[string]*account // email（小文字）→アカウント
	idTokens map[string]string   // idToken→localId
	apiKey   string
	cost     int
	logger   *slog.Logger
}

// NewIdentityStub はIdentityStubを生成する。apiKeyが空でない場合は?key=の一致を要求する。
func NewIdentityStub(apiKey string, logger *slog.Logger) *IdentityStub {
	return &IdentityStub{
		accounts: make(map[string]*account),
		idTokens: make(map[string]string),
		apiKey:   apiKey,
		cost:     bcrypt.DefaultCost,
		logger:   logger,
	}
}

type identityRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	IDToken     string `json:"idToken"`
	DisplayName string `json:"displayName"`
}

type identityResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

// ServeAccounts は /identity/v1/{method} を処理する。
func (s *IdentityStub) ServeAccounts(w http.ResponseWriter, r *http.Request) {
	if s.apiKey != "" && r.URL.Query().Get("key") != s.apiKey {
		writeIdentityError(w, http.StatusBadRequest, "API_KEY_INVALID")
		return
	}

	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIdentityError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}

	var (
		resp *identityResponse
		code string
	)
	switch chi.URLParam(r, "method") {
	case "accounts:signInWithPassword":
		resp, code = s.signIn(req)
	case "accounts:signUp":
		resp, code = s.signUp(req)
	case "accounts:update":
		resp, code = s.update(req)
	default:
		writeIdentityError(w, http.StatusNotFound, "NOT_FOUND")
		return
	}

	if code != "" {
		s.logger.Info("identity stub rejected request", slog.String("code", code))
		writeIdentityError(w, http.StatusBadRequest, code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *IdentityStub) signIn(req identityRequest) (*identityResponse, string) {
	if req.Email == "" {
		return nil, "INVALID_EMAIL"
	}
	if req.Password == "" {
		return nil, "MISSING_PASSWORD"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[emailKey(req.Email)]
	if !ok || bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(req.Password)) != nil {
		return nil, "INVALID_LOGIN_CREDENTIALS"
	}
	return s.respond(acc), ""
}

func (s *IdentityStub) signUp(req identityRequest) (*identityResponse, string) {
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, "INVALID_EMAIL"
	}
	if req.Password == "" {
		return nil, "MISSING_PASSWORD"
	}
	if len(req.Password) < minPasswordLength {
		return nil, "WEAK_PASSWORD : Password should be at least 6 characters"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, "INTERNAL_ERROR"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(req.Email)
	if _, exists := s.accounts[key]; exists {
		return nil, "EMAIL_EXISTS"
	}
	acc := &account{LocalID: uuid.NewString(), Email: strings.TrimSpace(req.Email), PasswordHash: hash}
	s.accounts[key] = acc
	return s.respond(acc), ""
}

func (s *IdentityStub) update(req identityRequest) (*identityResponse, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	localID, ok := s.idTokens[req.IDToken]
	if !ok {
		return nil, "INVALID_ID_TOKEN"
	}
	for _, acc := range s.accounts {
		if acc.LocalID == localID {
			acc.DisplayName = req.DisplayName
			return s.respond(acc), ""
		}
	}
	return nil, "USER_NOT_FOUND"
}

// respond は新しいidTokenを払い出してレスポンスを組み立てる。s.muを保持して呼ぶ。
func (s *IdentityStub) respond(acc *account) *identityResponse {
	idToken := uuid.NewString()
	s.idTokens[idToken] = acc.LocalID
	return &identityResponse{
		LocalID:     acc.LocalID,
		Email:       acc.Email,
		DisplayName: acc.DisplayName,
		IDToken:     idToken,
	}
}

func writeIdentityError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	body.Error.Code = status
	body.Error.Message = code
	_ = json.NewEncoder(w).Encode(body)
}
