package orderbook

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ProjectsTask/EasySwapOrderBook/common/utils"
	"github.com/ProjectsTask/EasySwapOrderBook/dao"
	"github.com/ProjectsTask/EasySwapOrderBook/logger/xzap"
	"github.com/ProjectsTask/EasySwapOrderBook/model"
	"github.com/ProjectsTask/EasySwapOrderBook/service/batchwriter"
	"github.com/ProjectsTask/EasySwapOrderBook/service/orderhash"
	"github.com/ProjectsTask/EasySwapOrderBook/stores/docstore"
)

var ErrOrderExpired = errors.New("order already expired")

// Executor 撮合结果的结算方 (链上执行), 在订单迁移到 inactive 之后调用
type Executor interface {
	Execute(ctx context.Context, match *model.BuyOrderMatch) error
}

// MatchQueue 待撮合买单队列
type MatchQueue interface {
	Push(ctx context.Context, orderId string) error
	Pop(ctx context.Context) (string, error)
}

// OrderBook 订单簿
// 订单状态只通过 "从旧列表删除 + 写入新列表" 的原子写入组迁移
type OrderBook struct {
	ctx      context.Context
	dao      *dao.Dao
	writer   *batchwriter.Writer
	identity *orderhash.Identity
	domain   orderhash.Domain
	chainId  int64

	source   SellOrderSource
	executor Executor
	queue    MatchQueue
	now      func() time.Time
	logger   *zap.Logger

	matchInterval  time.Duration
	expireInterval time.Duration
	queueInterval  time.Duration
	queueBatch     int

	matchMu sync.Mutex // 串行化 "查找匹配 + 迁移订单", 同一卖单不会被两个买单同时占用

	matchRunning  atomic.Bool
	expireRunning atomic.Bool
	queueRunning  atomic.Bool
}

type Option func(b *OrderBook)

func WithSource(source SellOrderSource) Option {
	return func(b *OrderBook) {
		b.source = source
	}
}

func WithExecutor(executor Executor) Option {
	return func(b *OrderBook) {
		b.executor = executor
	}
}

func WithQueue(queue MatchQueue) Option {
	return func(b *OrderBook) {
		b.queue = queue
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *OrderBook) {
		b.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *OrderBook) {
		b.logger = logger
	}
}

func WithChainId(chainId int64) Option {
	return func(b *OrderBook) {
		b.chainId = chainId
	}
}

// WithIntervals 周期任务间隔, 非正值保持默认
func WithIntervals(match, expire, queue time.Duration) Option {
	return func(b *OrderBook) {
		if match > 0 {
			b.matchInterval = match
		}
		if expire > 0 {
			b.expireInterval = expire
		}
		if queue > 0 {
			b.queueInterval = queue
		}
	}
}

func WithQueueBatch(n int) Option {
	return func(b *OrderBook) {
		if n > 0 {
			b.queueBatch = n
		}
	}
}

func New(ctx context.Context, d *dao.Dao, writer *batchwriter.Writer, identity *orderhash.Identity, domain orderhash.Domain, options ...Option) *OrderBook {
	b := &OrderBook{
		ctx:            ctx,
		dao:            d,
		writer:         writer,
		identity:       identity,
		domain:         domain,
		now:            time.Now,
		matchInterval:  DefaultMatchInterval,
		expireInterval: DefaultExpireInterval,
		queueInterval:  DefaultQueueInterval,
		queueBatch:     DefaultQueueBatch,
	}
	for _, opt := range options {
		opt(b)
	}
	if b.logger == nil {
		b.logger = xzap.WithContext(ctx)
	}
	if b.source == nil {
		b.source = NewStoreSource(d, b.logger)
	}
	return b
}

// SubmitOrder 计算订单 id 并写入 active 列表, 买单进入撮合队列
// 相同的订单重复提交返回同一个 id, 不重复写入
func (b *OrderBook) SubmitOrder(ctx context.Context, order *model.Order, maker string) (string, error) {
	normalized, digest, err := b.identity.Identify(order, maker, b.domain)
	if err != nil {
		return "", err
	}
	orderId := digest.Hex()

	now := b.now()
	if IsExpired(normalized, now) {
		return "", errors.Wrapf(ErrOrderExpired, "order %s", orderId)
	}
	if _, err := CurrentPrice(normalized, now); err != nil {
		return "", errors.Wrap(err, "failed on price order")
	}

	existing, err := b.dao.GetOrder(ctx, model.StatusActive, normalized.Side(), orderId)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return orderId, nil
	}

	normalized.Signature = order.Signature
	stored := &model.StoredOrder{
		OrderId: orderId,
		Maker:   utils.ToValidateAddress(strings.TrimSpace(maker)),
		ChainId: b.chainId,
		Order:   *normalized,
	}
	write, err := dao.NewOrderWrite(stored, now)
	if err != nil {
		return "", err
	}
	if err := b.writer.Apply(ctx, write); err != nil {
		return "", errors.Wrap(err, "failed on persist order")
	}

	b.logger.Info("order submitted",
		zap.String("order_id", orderId),
		zap.String("side", normalized.Side()),
		zap.String("maker", stored.Maker))

	if !normalized.IsSellOrder && b.queue != nil {
		if err := b.queue.Push(ctx, orderId); err != nil {
			b.logger.Error("failed on push order to match queue", zap.String("order_id", orderId), zap.Error(err))
		}
	}
	return orderId, nil
}

// CancelOrder 把 active 订单迁移到 invalid, 订单不存在时返回 nil, nil
func (b *OrderBook) CancelOrder(ctx context.Context, orderId string) (*model.StoredOrder, error) {
	b.matchMu.Lock()
	defer b.matchMu.Unlock()

	order, err := b.dao.FindActiveOrder(ctx, orderId)
	if err != nil || order == nil {
		return nil, err
	}
	if err := b.moveOrders(ctx, model.StatusInvalid, order); err != nil {
		return nil, err
	}

	b.logger.Info("order canceled", zap.String("order_id", order.OrderId))
	return order, nil
}

// MarketMatches 对全部未过期的 active 买单尝试匹配, 只返回结果不迁移订单
// 单个买单价格计算失败时记录日志并继续处理其他买单
func (b *OrderBook) MarketMatches(ctx context.Context) ([]*model.BuyOrderMatch, error) {
	buys, err := b.dao.ListActiveOrders(ctx, model.SideBuy)
	if err != nil {
		return nil, err
	}

	now := b.now()
	var matches []*model.BuyOrderMatch
	for _, buy := range buys {
		if IsExpired(&buy.Order, now) {
			continue
		}
		match, err := FindMatchForBuy(ctx, buy, b.source, now)
		if err != nil {
			b.logger.Warn("failed on find match for buy order", zap.String("order_id", buy.OrderId), zap.Error(err))
			continue
		}
		if match != nil {
			matches = append(matches, match)
		}
	}
	return matches, nil
}

// ExecuteBuyOrder 为指定 active 买单撮合
//  1. 查找买单, 不存在或已过期返回 nil, nil
//  2. 查找匹配, 无匹配返回 nil, nil
//  3. 买单与全部卖单在一个原子写入组中迁移到 inactive
//  4. 交给 Executor 结算
func (b *OrderBook) ExecuteBuyOrder(ctx context.Context, orderId string) (*model.BuyOrderMatch, error) {
	match, err := b.matchAndMove(ctx, orderId)
	if err != nil || match == nil {
		return nil, err
	}

	b.logger.Info("buy order matched",
		zap.String("order_id", match.BuyOrder.OrderId),
		zap.Strings("sell_order_ids", match.SellOrderIds()))

	if b.executor != nil {
		if err := b.executor.Execute(ctx, match); err != nil {
			return match, errors.Wrap(err, "failed on execute match")
		}
	}
	return match, nil
}

func (b *OrderBook) matchAndMove(ctx context.Context, orderId string) (*model.BuyOrderMatch, error) {
	b.matchMu.Lock()
	defer b.matchMu.Unlock()

	buy, err := b.dao.GetOrder(ctx, model.StatusActive, model.SideBuy, orderId)
	if err != nil || buy == nil {
		return nil, err
	}
	now := b.now()
	if IsExpired(&buy.Order, now) {
		return nil, nil
	}

	match, err := FindMatchForBuy(ctx, buy, b.source, now)
	if err != nil || match == nil {
		return nil, err
	}

	orders := append([]*model.StoredOrder{match.BuyOrder}, match.SellOrders...)
	if err := b.moveOrders(ctx, model.StatusInactive, orders...); err != nil {
		return nil, err
	}
	return match, nil
}

// MatchActiveOrders 依次撮合全部 active 买单, 返回成交数量
func (b *OrderBook) MatchActiveOrders(ctx context.Context) (int, error) {
	buys, err := b.dao.ListActiveOrders(ctx, model.SideBuy)
	if err != nil {
		return 0, err
	}

	matched := 0
	for _, buy := range buys {
		match, err := b.ExecuteBuyOrder(ctx, buy.OrderId)
		if err != nil {
			b.logger.Error("failed on execute buy order", zap.String("order_id", buy.OrderId), zap.Error(err))
			continue
		}
		if match != nil {
			matched++
		}
	}
	return matched, nil
}

// ExpireOrders 把全部过期的 active 订单迁移到 invalid, 返回迁移数量
func (b *OrderBook) ExpireOrders(ctx context.Context) (int, error) {
	b.matchMu.Lock()
	defer b.matchMu.Unlock()

	now := b.now()
	expired := 0
	for _, side := range []string{model.SideBuy, model.SideSell} {
		orders, err := b.dao.ListActiveOrders(ctx, side)
		if err != nil {
			return expired, err
		}
		for _, order := range orders {
			if !IsExpired(&order.Order, now) {
				continue
			}
			writes, err := dao.MoveOrderWrites(order, model.StatusInvalid, now)
			if err != nil {
				return expired, err
			}
			if err := b.writer.AddGroup(ctx, writes...); err != nil {
				return expired, errors.Wrap(err, "failed on add expire writes")
			}
			expired++
		}
	}

	if err := b.writer.Flush(ctx); err != nil {
		return expired, errors.Wrap(err, "failed on flush expired orders")
	}
	if expired > 0 {
		b.logger.Info("orders expired", zap.Int("count", expired))
	}
	return expired, nil
}

// moveOrders 调用方持有 matchMu
func (b *OrderBook) moveOrders(ctx context.Context, toStatus string, orders ...*model.StoredOrder) error {
	now := b.now()
	writes := make([]docstore.Write, 0, 2*len(orders))
	for _, order := range orders {
		w, err := dao.MoveOrderWrites(order, toStatus, now)
		if err != nil {
			return err
		}
		writes = append(writes, w...)
	}

	if err := b.writer.Apply(ctx, writes...); err != nil {
		return errors.Wrapf(err, "failed on move orders to %s", toStatus)
	}
	return nil
}
