package application

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/storefront/internal/account/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"github.com/wyfcoding/storefront/pkg/auth"
	"github.com/wyfcoding/storefront/pkg/db"
	"gorm.io/gorm"
)

// LoginResult 登录结果
type LoginResult struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      auth.Role `json:"role"`
}

// UpdateBuyerCommand 买家资料更新，nil 字段保持不变
type UpdateBuyerCommand struct {
	ID       string
	Username *string
	Email    *string
	Password *string
}

// UpdateAdminCommand 管理员更新，nil 字段保持不变
type UpdateAdminCommand struct {
	ID       string
	Username *string
	Password *string
}

// AccountCommandService 账户命令服务
type AccountCommandService struct {
	tx        db.Transactor
	buyers    domain.BuyerRepository
	admins    domain.AdminRepository
	issuer    *auth.TokenIssuer
	publisher domain.EventPublisher
	hashCost  int
	now       func() time.Time
}

// NewAccountCommandService 创建账户命令服务
func NewAccountCommandService(
	tx db.Transactor,
	buyers domain.BuyerRepository,
	admins domain.AdminRepository,
	issuer *auth.TokenIssuer,
	publisher domain.EventPublisher,
) *AccountCommandService {
	return &AccountCommandService{
		tx:        tx,
		buyers:    buyers,
		admins:    admins,
		issuer:    issuer,
		publisher: publisher,
		now:       time.Now,
	}
}

var errBadCredentials = apperr.Unauthenticated("invalid username or password")

// LoginBuyer 买家登录
func (s *AccountCommandService) LoginBuyer(ctx context.Context, username, password string) (*LoginResult, error) {
	buyer, err := s.buyers.GetByUsername(ctx, domain.NormalizeUsername(username))
	if err != nil {
		return nil, apperr.Persistence("load buyer", err)
	}
	if buyer == nil {
		return nil, errBadCredentials
	}
	return s.login(ctx, buyer.ID, buyer.Username, buyer.PasswordHash, password, auth.RoleBuyer)
}

// LoginAdmin 管理员登录
func (s *AccountCommandService) LoginAdmin(ctx context.Context, username, password string) (*LoginResult, error) {
	admin, err := s.admins.GetByUsername(ctx, domain.NormalizeUsername(username))
	if err != nil {
		return nil, apperr.Persistence("load administrator", err)
	}
	if admin == nil {
		return nil, errBadCredentials
	}
	return s.login(ctx, admin.ID, admin.Username, admin.PasswordHash, password, auth.RoleAdmin)
}

func (s *AccountCommandService) login(ctx context.Context, id, username, hash, password string, role auth.Role) (*LoginResult, error) {
	ok, err := domain.CheckPassword(hash, password)
	if err != nil {
		logging.Warn(ctx, "password check failed", "user_id", id, "error", err)
		return nil, errBadCredentials
	}
	if !ok {
		return nil, errBadCredentials
	}

	token, expiresAt, err := s.issuer.Generate(id, username, role)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "issue token", err)
	}
	logging.Info(ctx, "login succeeded", "user_id", id, "role", role)
	return &LoginResult{
		Token:     token,
		Type:      "Bearer",
		ExpiresAt: expiresAt,
		UserID:    id,
		Username:  username,
		Role:      role,
	}, nil
}

// UpdateBuyer 更新买家用户名、邮箱或密码
func (s *AccountCommandService) UpdateBuyer(ctx context.Context, cmd UpdateBuyerCommand) (*domain.Buyer, error) {
	buyer, err := s.buyers.GetByID(ctx, cmd.ID)
	if err != nil {
		return nil, apperr.Persistence("load buyer", err)
	}
	if buyer == nil {
		return nil, apperr.NotFound("buyer", cmd.ID)
	}

	if cmd.Username != nil {
		username := domain.NormalizeUsername(*cmd.Username)
		if err := domain.ValidateUsername(username); err != nil {
			return nil, err
		}
		if username != buyer.Username {
			other, err := s.buyers.GetByUsername(ctx, username)
			if err != nil {
				return nil, apperr.Persistence("load buyer", err)
			}
			if other != nil {
				return nil, apperr.Conflict("username %q is already taken", username)
			}
			buyer.Username = username
		}
	}
	if cmd.Email != nil {
		email := domain.NormalizeEmail(*cmd.Email)
		if err := domain.ValidateEmail(email); err != nil {
			return nil, err
		}
		if email != buyer.Email {
			other, err := s.buyers.GetByEmail(ctx, email)
			if err != nil {
				return nil, apperr.Persistence("load buyer", err)
			}
			if other != nil {
				return nil, apperr.Conflict("email %q is already registered", email)
			}
			buyer.Email = email
		}
	}
	if cmd.Password != nil {
		hash, err := s.hash(*cmd.Password)
		if err != nil {
			return nil, err
		}
		buyer.PasswordHash = hash
	}

	buyer.UpdatedAt = s.now()
	if err := s.buyers.Save(ctx, buyer); err != nil {
		return nil, saveError("update buyer", err)
	}
	return buyer, nil
}

// DeleteBuyer 删除买家，存在购买记录时拒绝
func (s *AccountCommandService) DeleteBuyer(ctx context.Context, id string) error {
	buyer, err := s.buyers.GetByID(ctx, id)
	if err != nil {
		return apperr.Persistence("load buyer", err)
	}
	if buyer == nil {
		return apperr.NotFound("buyer", id)
	}
	purchased, err := s.buyers.HasPurchases(ctx, id)
	if err != nil {
		return apperr.Persistence("check buyer purchases", err)
	}
	if purchased {
		return apperr.Conflict("buyer %s has purchases and cannot be deleted", id)
	}
	if err := s.buyers.Delete(ctx, id); err != nil {
		return apperr.Persistence("delete buyer", err)
	}
	publish(ctx, s.publisher, domain.TopicBuyerDeleted, id, domain.BuyerDeletedEvent{BuyerID: id, Timestamp: s.now()})
	return nil
}

// CreateAdmin 创建管理员
func (s *AccountCommandService) CreateAdmin(ctx context.Context, username, password string) (*domain.Administrator, error) {
	username = domain.NormalizeUsername(username)
	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}
	existing, err := s.admins.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperr.Persistence("load administrator", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("administrator %q already exists", username)
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	admin := &domain.Administrator{Username: username, PasswordHash: hash}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, saveError("create administrator", err)
	}
	logging.Info(ctx, "administrator created", "admin_id", admin.ID, "username", username)
	return admin, nil
}

// UpdateAdmin 更新管理员
func (s *AccountCommandService) UpdateAdmin(ctx context.Context, cmd UpdateAdminCommand) (*domain.Administrator, error) {
	admin, err := s.admins.GetByID(ctx, cmd.ID)
	if err != nil {
		return nil, apperr.Persistence("load administrator", err)
	}
	if admin == nil {
		return nil, apperr.NotFound("administrator", cmd.ID)
	}

	if cmd.Username != nil {
		username := domain.NormalizeUsername(*cmd.Username)
		if err := domain.ValidateUsername(username); err != nil {
			return nil, err
		}
		if username != admin.Username {
			other, err := s.admins.GetByUsername(ctx, username)
			if err != nil {
				return nil, apperr.Persistence("load administrator", err)
			}
			if other != nil {
				return nil, apperr.Conflict("administrator %q already exists", username)
			}
			admin.Username = username
		}
	}
	if cmd.Password != nil {
		hash, err := s.hash(*cmd.Password)
		if err != nil {
			return nil, err
		}
		admin.PasswordHash = hash
	}

	admin.UpdatedAt = s.now()
	if err := s.admins.Save(ctx, admin); err != nil {
		return nil, saveError("update administrator", err)
	}
	return admin, nil
}

// DeleteAdmin 删除管理员，保留至少一个
// 事务内先锁住全部管理员行，并发删除在此串行，不会删空
func (s *AccountCommandService) DeleteAdmin(ctx context.Context, id string) error {
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		ids, err := s.admins.LockIDs(ctx)
		if err != nil {
			return apperr.Persistence("lock administrators", err)
		}
		if !slices.Contains(ids, id) {
			return apperr.NotFound("administrator", id)
		}
		if len(ids) <= 1 {
			return apperr.Conflict("cannot delete the last administrator")
		}
		if err := s.admins.Delete(ctx, id); err != nil {
			return apperr.Persistence("delete administrator", err)
		}
		logging.Info(ctx, "administrator deleted", "admin_id", id, "remaining", len(ids)-1)
		return nil
	})
}

func (s *AccountCommandService) hash(password string) (string, error) {
	if err := domain.ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := domain.HashPassword(password, s.hashCost)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, "hash password", err)
	}
	return hash, nil
}

// saveError 唯一键冲突转为 CONFLICT
func saveError(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("username or email already in use")
	}
	return apperr.Persistence(op, err)
}
