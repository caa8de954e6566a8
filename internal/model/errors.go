// Package model はドメインモデルを定義する。
package model

import "errors"

// ErrorBody はバックエンドが非2xxレスポンスと共に返すエラーボディ。
// 形式は {"message": "..."} で統一されている。
type ErrorBody struct {
	Message string `json:"message"`
}

// Error はerrorインターフェースを実装する。
func (e *ErrorBody) Error() string {
	return e.Message
}

// ポータルの入力検証エラー。
// ページのフォーム検証で返していたメッセージをそのまま使う。
var (
	ErrFieldsRequired       = errors.New("Please fill in all required fields")
	ErrPollQuestionRequired = errors.New("Please fill in the question and at least 2 options")
	ErrResourceIDRequired   = errors.New("resource id is required")
	ErrInvalidStatus        = errors.New("Invalid status")
)
