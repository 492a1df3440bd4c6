package orderbook

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ProjectsTask/EasySwapOrderBook/dao"
	"github.com/ProjectsTask/EasySwapOrderBook/model"
)

// StoreSource 从订单簿 active 卖单列表中取候选, 按当前价格从低到高排序
type StoreSource struct {
	dao    *dao.Dao
	logger *zap.Logger
}

func NewStoreSource(d *dao.Dao, logger *zap.Logger) *StoreSource {
	return &StoreSource{dao: d, logger: logger}
}

func (s *StoreSource) CompatibleSellOrders(ctx context.Context, buy *model.StoredOrder, now time.Time) ([]*model.StoredOrder, error) {
	sells, err := s.dao.ListSellOrdersByCollections(ctx, buy.Order.Collections())
	if err != nil {
		return nil, err
	}

	type priced struct {
		order *model.StoredOrder
		price decimal.Decimal
	}
	candidates := make([]priced, 0, len(sells))
	for _, sell := range sells {
		if !IsCompatible(buy, sell, now) {
			continue
		}
		price, err := CurrentPrice(&sell.Order, now)
		if err != nil {
			s.logger.Warn("skip unpriceable sell order",
				zap.String("order_id", sell.OrderId), zap.Error(err))
			continue
		}
		candidates = append(candidates, priced{order: sell, price: price})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if c := candidates[i].price.Cmp(candidates[j].price); c != 0 {
			return c < 0
		}
		return candidates[i].order.OrderId < candidates[j].order.OrderId
	})

	out := make([]*model.StoredOrder, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.order)
	}
	return out, nil
}

// IsCompatible 判断卖单能否成交给买单
//   - 卖单未过期, 且不是买单 maker 自己的卖单
//   - 支付币种一致
//   - 私有卖单只卖给指定买家
//   - 卖单的每个集合都出现在买单中; 买单该集合未指定 token 时接受任意 token, 否则卖单 token 必须在买单列表内
func IsCompatible(buy, sell *model.StoredOrder, now time.Time) bool {
	if sell == nil || !sell.Order.IsSellOrder || IsExpired(&sell.Order, now) {
		return false
	}
	if strings.EqualFold(sell.Maker, buy.Maker) {
		return false
	}
	if !strings.EqualFold(sell.Order.ExecParams.CurrencyAddress, buy.Order.ExecParams.CurrencyAddress) {
		return false
	}
	if buyer := strings.TrimSpace(sell.Order.ExtraParams.Buyer); buyer != "" && !strings.EqualFold(buyer, buy.Maker) {
		return false
	}
	if len(sell.Order.Nfts) == 0 {
		return false
	}

	// 集合 -> 买单接受的 token id, nil 表示接受任意 token
	wanted := make(map[string]map[string]struct{})
	anyToken := make(map[string]bool)
	for _, item := range buy.Order.Nfts {
		collection := strings.ToLower(item.CollectionAddress)
		if len(item.Tokens) == 0 {
			anyToken[collection] = true
			continue
		}
		if wanted[collection] == nil {
			wanted[collection] = make(map[string]struct{})
		}
		for _, token := range item.Tokens {
			wanted[collection][token.TokenId] = struct{}{}
		}
	}

	for _, item := range sell.Order.Nfts {
		collection := strings.ToLower(item.CollectionAddress)
		if anyToken[collection] {
			continue
		}
		tokens, ok := wanted[collection]
		if !ok {
			return false
		}
		for _, token := range item.Tokens {
			if _, ok := tokens[token.TokenId]; !ok {
				return false
			}
		}
	}
	return true
}
