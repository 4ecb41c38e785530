// API 접근 토큰 검증 로직 정의
// 사용자 관리/발급은 외부 시스템 몫이고 여기서는 HS256 토큰 파싱만 한다

package service

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pulsewatch/backend/internal/config"
)

var ErrUnauthorized = errors.New("unauthorized")

type AuthService struct {
	jwtSecret []byte
}

type accessClaims struct {
	LoginID string `json:"loginId"`
	jwt.RegisteredClaims
}

func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{jwtSecret: []byte(cfg.JWTSecret)}
}

// Enabled - JWT_SECRET이 비어 있으면 인증을 끈다 (로컬 개발용)
func (s *AuthService) Enabled() bool {
	return len(s.jwtSecret) > 0
}

// ParseAccessToken - Bearer 토큰 검증 후 로그인 ID 반환
func (s *AuthService) ParseAccessToken(token string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("%w: auth not configured", ErrUnauthorized)
	}

	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if claims.LoginID == "" {
		return "", fmt.Errorf("%w: missing loginId claim", ErrUnauthorized)
	}
	return claims.LoginID, nil
}
