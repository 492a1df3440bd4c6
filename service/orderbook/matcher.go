package orderbook

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ProjectsTask/EasySwapOrderBook/model"
)

// SellOrderSource 为买单提供候选卖单
// 实现负责兼容性过滤与排序策略 (例如价格从低到高), 匹配算法按返回顺序遍历
type SellOrderSource interface {
	CompatibleSellOrders(ctx context.Context, buy *model.StoredOrder, now time.Time) ([]*model.StoredOrder, error)
}

// FindMatchForBuy 贪心地为买单凑齐卖单
//  1. 从 source 取候选卖单, 没有候选则无匹配
//  2. 预算 = 买单当前价格, 需要数量 = 买单 NumItems
//  3. 按 source 顺序遍历, 数量未满且预算足够时接受该卖单, 否则立即停止 (不跳过)
//  4. 接受的卖单数恰好等于 NumItems 才算匹配成功
//
// 无匹配返回 nil, nil; 价格无法计算时返回错误
func FindMatchForBuy(ctx context.Context, buy *model.StoredOrder, source SellOrderSource, now time.Time) (*model.BuyOrderMatch, error) {
	if buy == nil || buy.Order.IsSellOrder {
		return nil, nil
	}
	required := buy.Order.NumItems
	if required <= 0 {
		return nil, nil
	}

	candidates, err := source.CompatibleSellOrders(ctx, buy, now)
	if err != nil {
		return nil, errors.Wrap(err, "failed on fetch compatible sell orders")
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	budget, err := CurrentPrice(&buy.Order, now)
	if err != nil {
		return nil, errors.Wrapf(err, "failed on price buy order %s", buy.OrderId)
	}
	remaining := required

	accepted := make([]*model.StoredOrder, 0, required)
	for _, sell := range candidates {
		if remaining <= 0 {
			break
		}
		price, err := CurrentPrice(&sell.Order, now)
		if err != nil {
			return nil, errors.Wrapf(err, "failed on price sell order %s", sell.OrderId)
		}
		if budget.LessThan(price) {
			break
		}
		accepted = append(accepted, sell)
		budget = budget.Sub(price)
		remaining--
	}

	if len(accepted) != required {
		return nil, nil
	}
	return &model.BuyOrderMatch{BuyOrder: buy, SellOrders: accepted}, nil
}
