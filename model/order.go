package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// 订单状态列表, 状态迁移通过 "复制到新列表 + 从旧列表删除" 完成, 从不原地修改
const (
	StatusActive   = "active"   // 可撮合
	StatusInactive = "inactive" // 已撮合 / 已执行
	StatusInvalid  = "invalid"  // 已过期 / 已取消
)

const (
	SideBuy  = "buy"
	SideSell = "sell"

	HexPrefix   = "0x"
	ZeroAddress = "0x0000000000000000000000000000000000000000"

	// OrderBookRoot 订单簿文档根路径
	OrderBookRoot = "orderbook"
)

// EthAmount 以 ETH 为单位的十进制金额
// 客户端可能传 JSON 数字 (1.5) 也可能传字符串 ("1.5"), 这里统一保存原始文本, 由哈希/定价时再解析
type EthAmount string

func (a *EthAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "invalid eth amount")
		}
		*a = EthAmount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "invalid eth amount")
	}
	*a = EthAmount(n.String())
	return nil
}

func (a EthAmount) String() string {
	return string(a)
}

// TokenInfo 单个 token 及数量, 数值均为 uint256 十进制字符串
// ERC721 的 numTokens 固定为 1, ERC1155 大于 0
type TokenInfo struct {
	TokenId   string `json:"tokenId" validate:"required,uint256"`
	NumTokens string `json:"numTokens" validate:"required,uint256"`
}

// OrderItem 一个集合在订单中的部分
// Tokens 为空表示该集合内任意 token (集合出价)
type OrderItem struct {
	CollectionAddress string      `json:"collectionAddress" validate:"required,address"`
	Tokens            []TokenInfo `json:"tokens" validate:"dive"`
}

// ExecParams 执行参数
type ExecParams struct {
	ComplicationAddress string `json:"complicationAddress" validate:"required,address"`
	CurrencyAddress     string `json:"currencyAddress" validate:"required,address"`
}

// ExtraParams 额外参数, Buyer 非空表示仅对指定买家出售 (私有挂单)
type ExtraParams struct {
	Buyer string `json:"buyer,omitempty" validate:"omitempty,address"`
}

// Order 客户端签名后提交的订单
type Order struct {
	IsSellOrder    bool        `json:"isSellOrder"`
	Signer         string      `json:"signer" validate:"required,address"`
	StartPriceEth  EthAmount   `json:"startPriceEth"`
	EndPriceEth    EthAmount   `json:"endPriceEth"`
	StartTimeMs    int64       `json:"startTimeMs"`
	EndTimeMs      int64       `json:"endTimeMs"`
	MinBpsToSeller int         `json:"minBpsToSeller"`
	Nonce          string      `json:"nonce" validate:"required,uint256"`
	NumItems       int         `json:"numItems"`
	ExecParams     ExecParams  `json:"execParams"`
	ExtraParams    ExtraParams `json:"extraParams"`
	Nfts           []OrderItem `json:"nfts" validate:"required,min=1,dive"`
	Signature      string      `json:"signature,omitempty"`
}

// Side 返回订单方向
func (o *Order) Side() string {
	if o.IsSellOrder {
		return SideSell
	}
	return SideBuy
}

// Collections 返回订单涉及的集合地址 (小写, 去重, 保持首次出现顺序)
func (o *Order) Collections() []string {
	seen := make(map[string]struct{}, len(o.Nfts))
	var out []string
	for _, item := range o.Nfts {
		addr := strings.ToLower(item.CollectionAddress)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// StoredOrder 持久化在订单簿中的订单文档
type StoredOrder struct {
	OrderId    string `json:"orderId"`
	Maker      string `json:"maker"`
	ChainId    int64  `json:"chainId"`
	Status     string `json:"status"`
	Order      Order  `json:"order"`
	CreateTime int64  `json:"createTime"`
	UpdateTime int64  `json:"updateTime"`
}

// Key 订单在当前状态列表中的文档 key
func (s *StoredOrder) Key() string {
	return OrderKey(s.Status, s.Order.Side(), s.OrderId)
}

// OrderKey 订单文档路径: orderbook/<status>/<side>/<orderId>
func OrderKey(status, side, orderId string) string {
	return strings.Join([]string{OrderBookRoot, status, side, strings.ToLower(orderId)}, "/")
}

// OrderListPrefix 某状态某方向订单列表的前缀
func OrderListPrefix(status, side string) string {
	return strings.Join([]string{OrderBookRoot, status, side}, "/") + "/"
}

// BuyOrderMatch 一个买单与满足其价格/数量约束的卖单组合
type BuyOrderMatch struct {
	BuyOrder   *StoredOrder   `json:"buyOrder"`
	SellOrders []*StoredOrder `json:"sellOrders"`
}

// SellOrderIds 返回匹配中的卖单 id
func (m *BuyOrderMatch) SellOrderIds() []string {
	ids := make([]string, 0, len(m.SellOrders))
	for _, s := range m.SellOrders {
		ids = append(ids, s.OrderId)
	}
	return ids
}
