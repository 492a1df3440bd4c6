package mq

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"go.uber.org/zap"

	"github.com/ProjectsTask/EasySwapOrderBook/logger/xzap"
)

const CacheMatchQueueKey = "cache:%s:%s:orderbook:match:queue"

func GetMatchQueueKey(project, chain string) string {
	return fmt.Sprintf(CacheMatchQueueKey, strings.ToLower(project), strings.ToLower(chain))
}

const CacheMatchPreventReentrancyKeyPrefix = "cache:es:orderbook:match:prevent:reentrancy:%d:%s"
const PreventReentrancyPeriod = 10 //second

// KvStore 撮合队列用到的 Redis 操作, *xkv.Store 满足该接口
type KvStore interface {
	Get(key string) (string, error)
	Setex(key, value string, seconds int) error
	Rpush(key string, values ...interface{}) (int, error)
	Lpop(key string) (string, error)
}

// MatchQueue 待撮合买单队列 (Redis List, 先进先出)
type MatchQueue struct {
	kvStore KvStore
	project string
	chain   string
	chainId int64
}

func NewMatchQueue(kvStore KvStore, project, chain string, chainId int64) *MatchQueue {
	return &MatchQueue{
		kvStore: kvStore,
		project: project,
		chain:   chain,
		chainId: chainId,
	}
}

// Push 添加买单到撮合队列
// 功能:
// 1. 检查防重入锁, 防止短时间内重复撮合同一买单
// 2. 将订单 id 推入 Redis List 队尾 (Rpush)
// 3. 设置防重入锁过期时间 (10秒)
func (q *MatchQueue) Push(ctx context.Context, orderId string) error {
	orderId = strings.ToLower(orderId)
	reentrancyKey := fmt.Sprintf(CacheMatchPreventReentrancyKeyPrefix, q.chainId, orderId)

	queued, err := q.kvStore.Get(reentrancyKey)
	if err != nil {
		return errors.Wrap(err, "failed on check reentrancy status")
	}
	if queued != "" {
		xzap.WithContext(ctx).Info("match queued within 10s", zap.String("order_id", orderId))
		return nil
	}

	if _, err := q.kvStore.Rpush(GetMatchQueueKey(q.project, q.chain), orderId); err != nil {
		return errors.Wrap(err, "failed on push order to match queue")
	}

	_ = q.kvStore.Setex(reentrancyKey, "true", PreventReentrancyPeriod)

	return nil
}

// Pop 从队首取出一个买单 id, 队列为空时返回空字符串
func (q *MatchQueue) Pop(ctx context.Context) (string, error) {
	orderId, err := q.kvStore.Lpop(GetMatchQueueKey(q.project, q.chain))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", errors.Wrap(err, "failed on pop order from match queue")
	}
	return orderId, nil
}
