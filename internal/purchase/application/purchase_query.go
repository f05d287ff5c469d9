package application

import (
	"context"

	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/internal/purchase/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
)

// Viewer 查询发起者
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// PurchaseQueryService 购买流水查询服务
type PurchaseQueryService struct {
	purchases domain.PurchaseRepository
}

// NewPurchaseQueryService 创建查询服务
func NewPurchaseQueryService(purchases domain.PurchaseRepository) *PurchaseQueryService {
	return &PurchaseQueryService{purchases: purchases}
}

// GetPurchase 买家只能查看自己的流水，管理员不受限
func (s *PurchaseQueryService) GetPurchase(ctx context.Context, id string, viewer Viewer) (*domain.Purchase, error) {
	p, err := s.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("load purchase", err)
	}
	if p == nil {
		return nil, apperr.NotFound("purchase", id)
	}
	if !viewer.IsAdmin && p.BuyerID != viewer.UserID {
		// 不暴露他人流水是否存在
		return nil, apperr.NotFound("purchase", id)
	}
	return p, nil
}

// ListBuyerPurchases 买家流水，最新在前
func (s *PurchaseQueryService) ListBuyerPurchases(ctx context.Context, buyerID string, page *pagination.Request) (*pagination.Result[*domain.Purchase], error) {
	return s.list(ctx, domain.PurchaseFilter{BuyerID: buyerID}, page)
}

// BuyerSpendingSummary 买家消费汇总
func (s *PurchaseQueryService) BuyerSpendingSummary(ctx context.Context, buyerID string) (domain.SpendingSummary, error) {
	total, count, err := s.purchases.SumByBuyer(ctx, buyerID)
	if err != nil {
		return domain.SpendingSummary{}, apperr.Persistence("summarize purchases", err)
	}
	return domain.NewSpendingSummary(buyerID, total, count), nil
}

// FilterPurchases 按时间区间、买家、商品过滤
func (s *PurchaseQueryService) FilterPurchases(ctx context.Context, filter domain.PurchaseFilter, page *pagination.Request) (*pagination.Result[*domain.Purchase], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.list(ctx, filter, page)
}

// ListAllPurchases 全部流水
func (s *PurchaseQueryService) ListAllPurchases(ctx context.Context, page *pagination.Request) (*pagination.Result[*domain.Purchase], error) {
	return s.list(ctx, domain.PurchaseFilter{}, page)
}

func (s *PurchaseQueryService) list(ctx context.Context, filter domain.PurchaseFilter, page *pagination.Request) (*pagination.Result[*domain.Purchase], error) {
	items, total, err := s.purchases.List(ctx, filter, page)
	if err != nil {
		return nil, apperr.Persistence("list purchases", err)
	}
	return pagination.NewResult(total, page, items), nil
}
