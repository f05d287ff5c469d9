package application

import (
	"context"
	"time"

	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/tracing"
	"github.com/wyfcoding/storefront/internal/purchase/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"github.com/wyfcoding/storefront/pkg/db"
)

// ExecutePurchaseCommand 购买命令，Quantity 为 nil 时按 1 件处理
type ExecutePurchaseCommand struct {
	BuyerID   string
	ProductID string
	Quantity  *int
}

// PurchaseCoordinator 在单个事务内完成 写流水、扣库存、累加统计
type PurchaseCoordinator struct {
	tx        db.Transactor
	purchases domain.PurchaseRepository
	products  domain.ProductStock
	buyers    domain.BuyerLookup
	stats     domain.StatisticsRecorder
	publisher domain.EventPublisher
	metrics   *PurchaseMetrics
	now       func() time.Time
}

// NewPurchaseCoordinator 创建购买协调器
func NewPurchaseCoordinator(
	tx db.Transactor,
	purchases domain.PurchaseRepository,
	products domain.ProductStock,
	buyers domain.BuyerLookup,
	stats domain.StatisticsRecorder,
	publisher domain.EventPublisher,
	m *PurchaseMetrics,
) *PurchaseCoordinator {
	return &PurchaseCoordinator{
		tx:        tx,
		purchases: purchases,
		products:  products,
		buyers:    buyers,
		stats:     stats,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

// ExecutePurchase 执行一次购买
// 校验失败时不产生任何写入；事务内任一步失败整体回滚，不自动重试
func (c *PurchaseCoordinator) ExecutePurchase(ctx context.Context, cmd ExecutePurchaseCommand) (*domain.Purchase, error) {
	ctx, span := tracing.StartSpan(ctx, "PurchaseCoordinator.ExecutePurchase")
	defer span.End()
	tracing.AddTag(ctx, "product.id", cmd.ProductID)
	tracing.AddTag(ctx, "buyer.id", cmd.BuyerID)

	purchase, remaining, err := c.execute(ctx, cmd)
	if err != nil {
		tracing.SetError(ctx, err)
		tracing.AddTag(ctx, "error.code", string(apperr.CodeOf(err)))
		c.metrics.recordFailure(string(apperr.CodeOf(err)))
		logging.Warn(ctx, "purchase rejected",
			"buyer_id", cmd.BuyerID,
			"product_id", cmd.ProductID,
			"code", apperr.CodeOf(err),
			"error", err,
		)
		return nil, err
	}

	tracing.AddTag(ctx, "purchase.id", purchase.ID)
	c.metrics.recordPurchase(purchase.Quantity, purchase.Amount.InexactFloat64())
	logging.Info(ctx, "purchase completed",
		"purchase_id", purchase.ID,
		"buyer_id", purchase.BuyerID,
		"product_id", purchase.ProductID,
		"quantity", purchase.Quantity,
		"amount", purchase.Amount.String(),
	)
	publish(ctx, c.publisher, domain.TopicPurchaseCompleted, purchase.ProductID, domain.PurchaseCompletedEvent{
		PurchaseID:     purchase.ID,
		BuyerID:        purchase.BuyerID,
		ProductID:      purchase.ProductID,
		Quantity:       purchase.Quantity,
		Amount:         purchase.Amount,
		RemainingStock: remaining,
		Timestamp:      purchase.PurchaseDate,
	})
	return purchase, nil
}

func (c *PurchaseCoordinator) execute(ctx context.Context, cmd ExecutePurchaseCommand) (*domain.Purchase, int, error) {
	if cmd.BuyerID == "" {
		return nil, 0, apperr.Unauthenticated("buyer identity required")
	}

	// 1. 买家与商品必须存在
	buyer, err := c.buyers.GetByID(ctx, cmd.BuyerID)
	if err != nil {
		return nil, 0, apperr.Persistence("load buyer", err)
	}
	if buyer == nil {
		return nil, 0, apperr.NotFound("buyer", cmd.BuyerID)
	}
	product, err := c.products.GetByID(ctx, cmd.ProductID)
	if err != nil {
		return nil, 0, apperr.Persistence("load product", err)
	}
	if product == nil {
		return nil, 0, apperr.NotFound("product", cmd.ProductID)
	}

	// 2. 数量
	quantity, err := domain.ResolveQuantity(cmd.Quantity)
	if err != nil {
		return nil, 0, err
	}

	// 3. 库存预检，事务内加锁后再确认一次
	if !product.InStock(quantity) {
		return nil, 0, apperr.InsufficientStock(product.StockQuantity)
	}

	var (
		purchase  *domain.Purchase
		remaining int
	)
	err = c.tx.Transaction(ctx, func(ctx context.Context) error {
		locked, err := c.products.GetByIDForUpdate(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperr.NotFound("product", cmd.ProductID)
		}
		if !locked.InStock(quantity) {
			return apperr.InsufficientStock(locked.StockQuantity)
		}

		purchase = domain.NewPurchase(buyer.ID, locked.ID, locked.Price, quantity, c.now().UTC())
		if err := c.purchases.Create(ctx, purchase); err != nil {
			return err
		}

		ok, err := c.products.DecrementStock(ctx, locked.ID, quantity)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InsufficientStock(locked.StockQuantity)
		}
		remaining = locked.StockQuantity - quantity

		return c.stats.IncrementForPurchase(ctx, locked.ID, quantity, purchase.Amount, purchase.PurchaseDate)
	})
	if err != nil {
		return nil, 0, apperr.Persistence("execute purchase", err)
	}
	return purchase, remaining, nil
}
