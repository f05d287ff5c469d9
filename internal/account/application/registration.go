package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/storefront/internal/account/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"gorm.io/gorm"
)

const verificationSubject = "Verify your storefront account"

// InitiateRegistrationCommand 发起注册
type InitiateRegistrationCommand struct {
	Username string
	Email    string
	Password string
}

// RegistrationService 带邮箱验证的买家注册
type RegistrationService struct {
	buyers    domain.BuyerRepository
	store     domain.VerificationStore
	mailer    domain.Mailer
	publisher domain.EventPublisher
	ttl       time.Duration
	hashCost  int
	now       func() time.Time
}

// NewRegistrationService 创建注册服务
func NewRegistrationService(
	buyers domain.BuyerRepository,
	store domain.VerificationStore,
	mailer domain.Mailer,
	publisher domain.EventPublisher,
	ttl time.Duration,
) *RegistrationService {
	return &RegistrationService{
		buyers:    buyers,
		store:     store,
		mailer:    mailer,
		publisher: publisher,
		ttl:       ttl,
		now:       time.Now,
	}
}

// InitiateRegistration 校验并暂存注册信息，发送验证码
func (s *RegistrationService) InitiateRegistration(ctx context.Context, cmd InitiateRegistrationCommand) error {
	username := domain.NormalizeUsername(cmd.Username)
	email := domain.NormalizeEmail(cmd.Email)
	if err := domain.ValidateUsername(username); err != nil {
		return err
	}
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}
	if err := domain.ValidatePassword(cmd.Password); err != nil {
		return err
	}
	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return err
	}

	hash, err := domain.HashPassword(cmd.Password, s.hashCost)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "hash password", err)
	}
	pending := domain.PendingRegistration{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	return s.issue(ctx, pending)
}

// ResendVerification 为待验证邮箱重新签发验证码，旧验证码失效
func (s *RegistrationService) ResendVerification(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	pending, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return apperr.Persistence("load pending registration", err)
	}
	if pending == nil {
		return apperr.NotFound("pending registration", email)
	}
	return s.issue(ctx, *pending)
}

func (s *RegistrationService) issue(ctx context.Context, pending domain.PendingRegistration) error {
	code, err := s.store.Create(ctx, pending)
	if err != nil {
		return apperr.Persistence("store verification code", err)
	}
	body := fmt.Sprintf("Hello %s,\n\nyour verification code is %s. It expires in %d minutes.\n",
		pending.Username, code, int(s.ttl.Minutes()))
	if err := s.mailer.Send(ctx, pending.Email, verificationSubject, body); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "send verification email", err)
	}
	logging.Info(ctx, "verification code issued", "username", pending.Username, "email", pending.Email)
	return nil
}

// CompleteRegistration 消费验证码并创建买家
func (s *RegistrationService) CompleteRegistration(ctx context.Context, token string) (*domain.Buyer, error) {
	pending, err := s.store.Consume(ctx, token)
	if err != nil {
		return nil, apperr.Persistence("consume verification code", err)
	}
	if pending == nil {
		return nil, apperr.InvalidInput("invalid or expired verification code")
	}
	if err := s.ensureAvailable(ctx, pending.Username, pending.Email); err != nil {
		return nil, err
	}

	buyer := &domain.Buyer{
		Username:     pending.Username,
		Email:        pending.Email,
		PasswordHash: pending.PasswordHash,
	}
	if err := s.buyers.Create(ctx, buyer); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("username or email already registered")
		}
		return nil, apperr.Persistence("create buyer", err)
	}

	logging.Info(ctx, "buyer registered", "buyer_id", buyer.ID, "username", buyer.Username)
	publish(ctx, s.publisher, domain.TopicBuyerRegistered, buyer.ID, domain.BuyerRegisteredEvent{
		BuyerID:   buyer.ID,
		Username:  buyer.Username,
		Email:     buyer.Email,
		Timestamp: s.now(),
	})
	return buyer, nil
}

func (s *RegistrationService) ensureAvailable(ctx context.Context, username, email string) error {
	existing, err := s.buyers.GetByUsername(ctx, username)
	if err != nil {
		return apperr.Persistence("load buyer", err)
	}
	if existing != nil {
		return apperr.Conflict("username %q is already taken", username)
	}
	existing, err = s.buyers.GetByEmail(ctx, email)
	if err != nil {
		return apperr.Persistence("load buyer", err)
	}
	if existing != nil {
		return apperr.Conflict("email %q is already registered", email)
	}
	return nil
}
