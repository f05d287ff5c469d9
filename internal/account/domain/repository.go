package domain

import (
	"context"

	"github.com/wyfcoding/pkg/pagination"
)

// BuyerRepository 买家仓储，查询不到时返回 (nil, nil)
type BuyerRepository interface {
	Create(ctx context.Context, buyer *Buyer) error
	Save(ctx context.Context, buyer *Buyer) error
	GetByID(ctx context.Context, id string) (*Buyer, error)
	GetByUsername(ctx context.Context, username string) (*Buyer, error)
	GetByEmail(ctx context.Context, email string) (*Buyer, error)
	List(ctx context.Context, page *pagination.Request) ([]*Buyer, int64, error)
	// HasPurchases 买家是否存在购买记录
	HasPurchases(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// AdminRepository 管理员仓储，查询不到时返回 (nil, nil)
type AdminRepository interface {
	Create(ctx context.Context, admin *Administrator) error
	Save(ctx context.Context, admin *Administrator) error
	GetByID(ctx context.Context, id string) (*Administrator, error)
	GetByUsername(ctx context.Context, username string) (*Administrator, error)
	List(ctx context.Context) ([]*Administrator, error)
	// LockIDs 对全部管理员行加写锁并返回 id，需在事务内调用
	LockIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}
