// Package model はドメインモデルを定義する。
package model

import "strings"

// DefaultDisplayName は表示名を導出できない場合のフォールバック値。
// バックエンドやIdPが名前を返さなかった場合にもこの値が入る。
const DefaultDisplayName = "User"

// Role はユーザーの権限種別を表す。
type Role string

const (
	// RoleStudent は一般ユーザー（学生）。
	RoleStudent Role = "student"
	// RoleAdmin は管理者。一部ページの管理操作が許可される。
	RoleAdmin Role = "admin"
)

// ParseRole は文字列をRoleに変換する。
// 未知の値の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// NormalizeRole は未知のロールをRoleStudentに丸める。大文字小文字は区別しない。
func NormalizeRole(r Role) Role {
	if parsed, ok := ParseRole(string(r)); ok {
		return parsed
	}
	return RoleStudent
}

// Principal はログイン中のユーザーのID情報を表す。
// クライアントの永続ストレージにはこのJSON形式で保存される。
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// IsAdmin は管理者権限を持つかを返す。
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// DeriveDisplayName は画面表示用のユーザー名を導出する。
//
// 優先順位:
//  1. Name が空でなく、かつデフォルト値 "User" でない場合はそのまま
//  2. Email のローカル部（@より前、さらに最初の.より前）
//  3. "User"
//
// pがnilの場合も "User" を返す。
func DeriveDisplayName(p *Principal) string {
	if p == nil {
		return DefaultDisplayName
	}

	if p.Name != "" && p.Name != DefaultDisplayName {
		return p.Name
	}

	if p.Email != "" {
		local, _, _ := strings.Cut(p.Email, "@")
		local, _, _ = strings.Cut(local, ".")
		if local != "" {
			return local
		}
	}

	return DefaultDisplayName
}
