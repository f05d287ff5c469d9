package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/internal/account/domain"
	"github.com/wyfcoding/storefront/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// first 查询单行，未找到返回 (nil, nil)
func first[T any](q *gorm.DB, query string, args ...any) (*T, error) {
	var out T
	err := q.Where(query, args...).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type buyerRepository struct{ db *gorm.DB }

// NewBuyerRepository 创建买家仓储
func NewBuyerRepository(gdb *gorm.DB) domain.BuyerRepository {
	return &buyerRepository{db: gdb}
}

func (r *buyerRepository) getDB(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *buyerRepository) Create(ctx context.Context, buyer *domain.Buyer) error {
	return r.getDB(ctx).Create(buyer).Error
}

func (r *buyerRepository) Save(ctx context.Context, buyer *domain.Buyer) error {
	return r.getDB(ctx).Model(buyer).Select("username", "email", "password_hash", "updated_at").Updates(buyer).Error
}

func (r *buyerRepository) GetByID(ctx context.Context, id string) (*domain.Buyer, error) {
	return first[domain.Buyer](r.getDB(ctx), "id = ?", id)
}

func (r *buyerRepository) GetByUsername(ctx context.Context, username string) (*domain.Buyer, error) {
	return first[domain.Buyer](r.getDB(ctx), "username = ?", username)
}

func (r *buyerRepository) GetByEmail(ctx context.Context, email string) (*domain.Buyer, error) {
	return first[domain.Buyer](r.getDB(ctx), "email = ?", email)
}

func (r *buyerRepository) List(ctx context.Context, page *pagination.Request) ([]*domain.Buyer, int64, error) {
	var (
		buyers []*domain.Buyer
		total  int64
	)
	q := r.getDB(ctx).Model(&domain.Buyer{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("username").Offset(page.Offset()).Limit(page.Limit()).Find(&buyers).Error
	return buyers, total, err
}

func (r *buyerRepository) HasPurchases(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.getDB(ctx).Table("purchases").Where("buyer_id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *buyerRepository) Delete(ctx context.Context, id string) error {
	return r.getDB(ctx).Where("id = ?", id).Delete(&domain.Buyer{}).Error
}

func (r *buyerRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.getDB(ctx).Model(&domain.Buyer{}).Count(&n).Error
	return n, err
}

type adminRepository struct{ db *gorm.DB }

// NewAdminRepository 创建管理员仓储
func NewAdminRepository(gdb *gorm.DB) domain.AdminRepository {
	return &adminRepository{db: gdb}
}

func (r *adminRepository) getDB(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *adminRepository) Create(ctx context.Context, admin *domain.Administrator) error {
	return r.getDB(ctx).Create(admin).Error
}

func (r *adminRepository) Save(ctx context.Context, admin *domain.Administrator) error {
	return r.getDB(ctx).Model(admin).Select("username", "password_hash", "updated_at").Updates(admin).Error
}

func (r *adminRepository) GetByID(ctx context.Context, id string) (*domain.Administrator, error) {
	return first[domain.Administrator](r.getDB(ctx), "id = ?", id)
}

func (r *adminRepository) GetByUsername(ctx context.Context, username string) (*domain.Administrator, error) {
	return first[domain.Administrator](r.getDB(ctx), "username = ?", username)
}

func (r *adminRepository) List(ctx context.Context) ([]*domain.Administrator, error) {
	var admins []*domain.Administrator
	err := r.getDB(ctx).Order("username").Find(&admins).Error
	return admins, err
}

func (r *adminRepository) LockIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.getDB(ctx).Model(&domain.Administrator{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *adminRepository) Delete(ctx context.Context, id string) error {
	return r.getDB(ctx).Where("id = ?", id).Delete(&domain.Administrator{}).Error
}

func (r *adminRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.getDB(ctx).Model(&domain.Administrator{}).Count(&n).Error
	return n, err
}
