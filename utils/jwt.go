package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL 管理 Token 有效期
const TokenTTL = 24 * time.Hour

var (
	jwtSecret     []byte
	jwtSecretOnce sync.Once
)

// secret WIFICLOCK_JWT_SECRET 优先；否则每次启动随机生成（重启后旧 Token 失效）
func secret() []byte {
	jwtSecretOnce.Do(func() {
		if s := strings.TrimSpace(os.Getenv("WIFICLOCK_JWT_SECRET")); s != "" {
			jwtSecret = []byte(s)
			return
		}
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			jwtSecret = []byte("wificlock-secret-key")
			return
		}
		jwtSecret = []byte(hex.EncodeToString(b))
	})
	return jwtSecret
}

// GenerateJWT 生成JWT Token
func GenerateJWT(deviceID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"device_id": deviceID,
		"exp":       now.Add(TokenTTL).Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

// VerifyJWT 验证JWT Token
func VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("不支持的签名算法: %v", token.Header["alg"])
		}
		return secret(), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
