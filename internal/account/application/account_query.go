package application

import (
	"context"

	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/internal/account/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
)

// AccountQueryService 账户查询服务
type AccountQueryService struct {
	buyers domain.BuyerRepository
	admins domain.AdminRepository
}

// NewAccountQueryService 创建账户查询服务
func NewAccountQueryService(buyers domain.BuyerRepository, admins domain.AdminRepository) *AccountQueryService {
	return &AccountQueryService{buyers: buyers, admins: admins}
}

// GetBuyer 获取买家
func (s *AccountQueryService) GetBuyer(ctx context.Context, id string) (*domain.Buyer, error) {
	b, err := s.buyers.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("load buyer", err)
	}
	if b == nil {
		return nil, apperr.NotFound("buyer", id)
	}
	return b, nil
}

// ListBuyers 分页列出买家
func (s *AccountQueryService) ListBuyers(ctx context.Context, page *pagination.Request) (*pagination.Result[*domain.Buyer], error) {
	items, total, err := s.buyers.List(ctx, page)
	if err != nil {
		return nil, apperr.Persistence("list buyers", err)
	}
	return pagination.NewResult(total, page, items), nil
}

// CountBuyers 买家总数
func (s *AccountQueryService) CountBuyers(ctx context.Context) (int64, error) {
	n, err := s.buyers.Count(ctx)
	if err != nil {
		return 0, apperr.Persistence("count buyers", err)
	}
	return n, nil
}

// GetAdmin 获取管理员
func (s *AccountQueryService) GetAdmin(ctx context.Context, id string) (*domain.Administrator, error) {
	a, err := s.admins.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("load administrator", err)
	}
	if a == nil {
		return nil, apperr.NotFound("administrator", id)
	}
	return a, nil
}

// ListAdmins 全部管理员
func (s *AccountQueryService) ListAdmins(ctx context.Context) ([]*domain.Administrator, error) {
	admins, err := s.admins.List(ctx)
	if err != nil {
		return nil, apperr.Persistence("list administrators", err)
	}
	return admins, nil
}
