package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はHTMLを含みうる文字列をプレーンテキストに変換する。
// タグをすべて除去し、エンティティを戻し、連続する空白を1つにまとめる。
// bluemondayのポリシーはゴルーチン間で共有して安全に使える。
type TextSanitizer struct {
	policy   *bluemonday.Policy
	maxRunes int
}

// NewTextSanitizer はTextSanitizerを生成する。maxRunesが0以下の場合は切り詰めない。
func NewTextSanitizer(maxRunes int) *TextSanitizer {
	return &TextSanitizer{
		policy:   bluemonday.StrictPolicy(),
		maxRunes: maxRunes,
	}
}

// Text はプレーンテキストを返す。切り詰めた場合は末尾に "..." を付ける。
func (s *TextSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	// ブロック要素の区切りが単語を連結しないよう、タグの前に空白を入れる
	stripped := s.policy.Sanitize(strings.ReplaceAll(raw, "<", " <"))
	text := strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")

	if s.maxRunes > 0 && utf8.RuneCountInString(text) > s.maxRunes {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:s.maxRunes])) + "..."
	}
	return text
}
