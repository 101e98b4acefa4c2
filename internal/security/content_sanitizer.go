// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は外部ニュースフィード由来のHTMLをニュースカード用の
// プレーンテキスト概要へ変換し、XSS攻撃などのリスクからユーザーを保護する。
// SSRFGuardService はフィード取得時の内部ネットワークアクセスを防止する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はニュース記事HTMLのサニタイズ機能のインターフェースを定義する。
// ニュースカードはマークアップを描画しないため、出力は常にプレーンテキスト。
type ContentSanitizerService interface {
	// SummaryText はHTMLコンテンツを表示用の概要テキストへ変換する。
	// すべてのタグを除去し（script/style要素は中身ごと捨てる）、
	// HTMLエンティティをデコードし、連続する空白を1つにまとめ、
	// maxRunesを超える場合は文字境界で切り詰めて省略記号を付ける。
	// maxRunesが0以下の場合は切り詰めを行わない。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SummaryText(rawHTML string, maxRunes int) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全タグを除去し、script・style要素は中身ごと捨てる。
// タグを除去した位置には空白を挿入し、隣接テキストの連結を防ぐ。
func NewContentSanitizer() *contentSanitizer {
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &contentSanitizer{
		policy: policy,
	}
}

// SummaryText はHTMLコンテンツを表示用の概要テキストへ変換する。
func (s *contentSanitizer) SummaryText(rawHTML string, maxRunes int) string {
	// 1. タグの除去。危険な要素はポリシーが中身ごと捨てる
	text := s.policy.Sanitize(rawHTML)

	// 2. ポリシーがエスケープしたエンティティをテキストへ戻す
	// （出力はJSON文字列として返すため、HTMLとして解釈されることはない）
	text = html.UnescapeString(text)

	// 3. 改行・タブを含む連続空白を1つのスペースにまとめる
	text = strings.Join(strings.Fields(text), " ")

	// 4. 表示幅を超える場合は文字境界で切り詰める
	if maxRunes > 0 && utf8.RuneCountInString(text) > maxRunes {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:maxRunes])) + "…"
	}

	return text
}
