package orderbook

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ProjectsTask/EasySwapOrderBook/model"
)

const priceScale = 18 // 插值结果保留到 wei

// CurrentPrice 计算订单在 now 时刻的价格 (ETH)
// 在 [StartTimeMs, EndTimeMs] 内从起始价线性变化到结束价, 区间外取端点价格
func CurrentPrice(o *model.Order, now time.Time) (decimal.Decimal, error) {
	startPrice, err := parsePrice(o.StartPriceEth)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "invalid start price")
	}
	endPrice, err := parsePrice(o.EndPriceEth)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "invalid end price")
	}
	if o.EndTimeMs < o.StartTimeMs {
		return decimal.Zero, errors.Errorf("end time %d before start time %d", o.EndTimeMs, o.StartTimeMs)
	}

	nowMs := now.UnixMilli()
	switch {
	case nowMs <= o.StartTimeMs:
		return startPrice, nil
	case nowMs >= o.EndTimeMs:
		return endPrice, nil
	}

	elapsed := decimal.NewFromInt(nowMs - o.StartTimeMs)
	duration := decimal.NewFromInt(o.EndTimeMs - o.StartTimeMs)
	delta := endPrice.Sub(startPrice).Mul(elapsed).DivRound(duration, priceScale)
	return startPrice.Add(delta), nil
}

// IsExpired 当前时间晚于结束时间即过期
func IsExpired(o *model.Order, now time.Time) bool {
	return now.UnixMilli() > o.EndTimeMs
}

func parsePrice(amount model.EthAmount) (decimal.Decimal, error) {
	raw := strings.TrimSpace(amount.String())
	if raw == "" {
		return decimal.Zero, errors.New("empty price")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %q", raw)
	}
	if price.IsNegative() {
		return decimal.Zero, errors.Errorf("negative price %s", raw)
	}
	return price, nil
}
