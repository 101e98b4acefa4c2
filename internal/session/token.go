package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// CookieName はセッショントークンを保持するCookieの名前。
const CookieName = "krishilink_session"

// cookieClaims はCookieに載せるJWTクレーム。
// セッションIDに加えてプロバイダートークンを持ち、
// 再起動後にインメモリのセッションが失われてもResumeで復元できる。
type cookieClaims struct {
	SessionID     string `json:"sid"`
	ProviderToken string `json:"ptk"`
	jwt.RegisteredClaims
}

// TokenCodec はセッションCookieトークンの発行・検証を行う。
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec はTokenCodecを生成する。
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret)}
}

// Issue はセッションからCookie用の署名付きトークンを発行する。
func (c *TokenCodec) Issue(sess *model.Session) (string, error) {
	claims := cookieClaims{
		SessionID:     sess.ID,
		ProviderToken: sess.ProviderToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse はトークンを検証し、セッションIDとプロバイダートークンを返す。
// 署名不正・期限切れはUnauthorizedとして扱う。
func (c *TokenCodec) Parse(tokenString string) (sessionID, providerToken string, err error) {
	var claims cookieClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", "", model.NewUnauthorizedError()
	}

	return claims.SessionID, claims.ProviderToken, nil
}

// Lifetime はトークンの残り有効期間を返す。Cookieの MaxAge 設定に使う。
func Lifetime(sess *model.Session, now time.Time) time.Duration {
	return sess.ExpiresAt.Sub(now)
}
