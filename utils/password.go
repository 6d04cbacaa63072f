package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultAdminPassword 未设置密码时的管理密码
const DefaultAdminPassword = "admin"

// HashPassword 加密密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// VerifyPassword 验证密码
func VerifyPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckAdminPassword hash 为空时与默认密码比较
func CheckAdminPassword(password, hash string) bool {
	if hash == "" {
		return password == DefaultAdminPassword
	}
	return VerifyPassword(password, hash)
}
