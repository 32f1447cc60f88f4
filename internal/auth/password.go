package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength はサインアップ時のパスワード最小長。
const MinPasswordLength = 8

// 存在しないアカウントでも比較処理を行い、応答時間からアカウントの有無を推測されないようにする。
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("binna-dummy-password"), bcrypt.DefaultCost)

// HashPassword はパスワードをbcryptでハッシュ化する。
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword はパスワードがハッシュと一致するかを返す。
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// パスワードを持たないアカウントでも同じコストの比較を行う。テストで差し替えられるよう変数にしている。
var burnPasswordCheck = func(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
