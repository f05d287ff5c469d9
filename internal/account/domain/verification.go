package domain

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// PendingRegistration 待验证的注册信息，密码已哈希
type PendingRegistration struct {
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// VerificationStore 一次性、限时的验证码到待注册信息的映射
//
// 同一邮箱再次 Create 时旧验证码失效。
// Consume 与 FindByEmail 在验证码不存在或已过期时返回 (nil, nil)。
type VerificationStore interface {
	Create(ctx context.Context, pending PendingRegistration) (string, error)
	Consume(ctx context.Context, token string) (*PendingRegistration, error)
	FindByEmail(ctx context.Context, email string) (*PendingRegistration, error)
	Close() error
}

const codeDigits = 6

var codeLimit = big.NewInt(1_000_000)

// NewVerificationCode 生成 6 位数字验证码
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeLimit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// Mailer 邮件发送
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
