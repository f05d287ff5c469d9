package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 150
	minPasswordLength = 8
	// bcrypt 只处理前 72 字节
	maxPasswordLength = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.@+-]+$`)

// Buyer 买家账户
type Buyer struct {
	ID           string    `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	Username     string    `gorm:"column:username;type:varchar(150);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Buyer) TableName() string { return "buyers" }

// BeforeCreate 生成 UUID 主键
func (b *Buyer) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Administrator 管理员
type Administrator struct {
	ID           string    `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	Username     string    `gorm:"column:username;type:varchar(150);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Administrator) TableName() string { return "administrators" }

// BeforeCreate 生成 UUID 主键
func (a *Administrator) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// NormalizeUsername 去除首尾空白
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// NormalizeEmail 邮箱统一小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUsername 用户名 3-150 位，仅字母数字与 _.@+-
func ValidateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return apperr.InvalidInput("username must be %d-%d characters", minUsernameLength, maxUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return apperr.InvalidInput("username may only contain letters, digits and _.@+-")
	}
	return nil
}

// ValidateEmail 校验邮箱格式
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.InvalidInput("invalid email address")
	}
	return nil
}

// ValidatePassword 密码长度 8-72 字节
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return apperr.InvalidInput("password must be %d-%d characters", minPasswordLength, maxPasswordLength)
	}
	return nil
}

// HashPassword bcrypt 哈希，cost 为 0 时使用默认值
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 校验密码，不匹配返回 false
func CheckPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return err == nil, err
}
