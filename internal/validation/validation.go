// Package validation はフォーム入力の純粋バリデーション関数と
// 認証エラーコードのユーザー向けメッセージ変換を提供する。
// ネットワークや副作用を持たない決定的な関数のみを含む。
package validation

import (
	"regexp"
	"strings"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// PasswordResult はパスワード検証の結果を表す。
// 失敗は例外ではなくエラーメッセージの集合として返す。
type PasswordResult struct {
	IsValid bool
	Errors  []string
}

// ValidatePassword はパスワードポリシーを検証する。
// ポリシー: 6文字以上、大文字を1つ以上、小文字を1つ以上。
// 違反したルールごとにメッセージを集約して返す。
func ValidatePassword(password string) PasswordResult {
	var errs []string

	if len(password) < 6 {
		errs = append(errs, "Password must be at least 6 characters long")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}

	return PasswordResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

// emailRegex はメールアドレスの形状チェック用の正規表現。
// 到達可能性の保証ではなく、local@domain.tld の形であることのみを確認する。
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail はメールアドレスの形状を検証する。
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// authErrorMessages は既知のプロバイダーエラーコードとユーザー向けメッセージの対応表。
var authErrorMessages = map[string]string{
	"auth/email-already-in-use":    "This email is already registered",
	"auth/invalid-email":           "Invalid email address",
	"auth/operation-not-allowed":   "Operation not allowed",
	"auth/weak-password":           "Password is too weak",
	"auth/user-disabled":           "This account has been disabled",
	"auth/user-not-found":          "No account found with this email",
	"auth/wrong-password":          "Incorrect password",
	"auth/too-many-requests":       "Too many attempts. Please try again later",
	"auth/network-request-failed":  "Network error. Please check your connection",
	"auth/popup-closed-by-user":    "Sign-in popup was closed",
	"auth/cancelled-popup-request": "Only one popup request is allowed at a time",
}

// genericAuthErrorMessage は未知のエラーコードに対するフォールバックメッセージ。
const genericAuthErrorMessage = "An error occurred. Please try again"

// AuthErrorMessage はプロバイダーのエラーコードをユーザー向けメッセージに変換する。
// 未知のコードには汎用メッセージを返す全域関数であり、決して失敗しない。
func AuthErrorMessage(errorCode string) string {
	if msg, ok := authErrorMessages[errorCode]; ok {
		return msg
	}
	return genericAuthErrorMessage
}

// DisplayName はユーザーの表示名を解決する。
// 未ログインは"Guest"、表示名未設定はメールのローカル部、どちらも無ければ"User"。
func DisplayName(user *model.User) string {
	if user == nil {
		return "Guest"
	}
	if user.DisplayName != "" {
		return user.DisplayName
	}
	if user.Email != "" {
		return strings.SplitN(user.Email, "@", 2)[0]
	}
	return "User"
}

// AvatarURL はユーザーのアバター画像URLを返す。未設定の場合は空文字列。
func AvatarURL(user *model.User) string {
	if user == nil {
		return ""
	}
	return user.PhotoURL
}
