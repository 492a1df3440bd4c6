package orderbook

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zeromicro/go-zero/core/threading"
	"go.uber.org/zap"
)

const (
	DefaultMatchInterval  = 10 * time.Second // 全量撮合间隔
	DefaultExpireInterval = 30 * time.Second // 过期扫描间隔
	DefaultQueueInterval  = time.Second      // 撮合队列消费间隔
	DefaultQueueBatch     = 100              // 每次最多从队列取出的买单数
)

// Start 启动后台周期任务, 随 ctx 取消退出
func (b *OrderBook) Start() {
	// 全量撮合
	threading.GoSafe(func() {
		b.runLoop("match", b.matchInterval, &b.matchRunning, b.matchTask)
	})
	// 过期清理
	threading.GoSafe(func() {
		b.runLoop("expire", b.expireInterval, &b.expireRunning, b.expireTask)
	})
	// 按需撮合
	if b.queue != nil {
		threading.GoSafe(func() {
			b.runLoop("queue", b.queueInterval, &b.queueRunning, b.ConsumeMatchQueue)
		})
	}
}

// RunMatch 立即执行一次全量撮合, 已有撮合在执行时跳过并返回 false
func (b *OrderBook) RunMatch(ctx context.Context) bool {
	return b.runOnce(ctx, "match", &b.matchRunning, b.matchTask)
}

// RunExpire 立即执行一次过期清理, 已有清理在执行时跳过并返回 false
func (b *OrderBook) RunExpire(ctx context.Context) bool {
	return b.runOnce(ctx, "expire", &b.expireRunning, b.expireTask)
}

func (b *OrderBook) runLoop(name string, interval time.Duration, running *atomic.Bool, task func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			b.logger.Info("orderbook task stopped due to context cancellation", zap.String("task", name))
			return
		case <-ticker.C:
			b.runOnce(b.ctx, name, running, task)
		}
	}
}

// runOnce 同一任务同一时刻只有一个在执行, 撞上正在执行的任务直接跳过, 不排队
func (b *OrderBook) runOnce(ctx context.Context, name string, running *atomic.Bool, task func(ctx context.Context) error) bool {
	if !running.CompareAndSwap(false, true) {
		b.logger.Debug("orderbook task still running, skip", zap.String("task", name))
		return false
	}
	defer running.Store(false)

	if err := task(ctx); err != nil {
		b.logger.Error("failed on run orderbook task", zap.String("task", name), zap.Error(err))
	}
	return true
}

func (b *OrderBook) matchTask(ctx context.Context) error {
	matched, err := b.MatchActiveOrders(ctx)
	if matched > 0 {
		b.logger.Info("market match finished", zap.Int("matched", matched))
	}
	return err
}

func (b *OrderBook) expireTask(ctx context.Context) error {
	_, err := b.ExpireOrders(ctx)
	return err
}

// ConsumeMatchQueue 从撮合队列中取出买单依次撮合, 队列为空或取满一批后返回
func (b *OrderBook) ConsumeMatchQueue(ctx context.Context) error {
	if b.queue == nil {
		return nil
	}
	for i := 0; i < b.queueBatch; i++ {
		orderId, err := b.queue.Pop(ctx)
		if err != nil {
			return err
		}
		if orderId == "" {
			return nil
		}
		if _, err := b.ExecuteBuyOrder(ctx, orderId); err != nil {
			b.logger.Error("failed on execute queued buy order", zap.String("order_id", orderId), zap.Error(err))
		}
	}
	return nil
}
