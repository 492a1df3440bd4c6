package dao

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ProjectsTask/EasySwapOrderBook/model"
	"github.com/ProjectsTask/EasySwapOrderBook/stores/docstore"
)

// GetOrder 按状态、方向、id 读取订单, 不存在时返回 nil, nil
func (d *Dao) GetOrder(ctx context.Context, status, side, orderId string) (*model.StoredOrder, error) {
	payload, err := d.Store.Get(ctx, model.OrderKey(status, side, orderId))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed on get order")
	}

	order, err := DecodeOrder(payload)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// FindActiveOrder 在两个方向的 active 列表中查找订单, 不存在时返回 nil, nil
func (d *Dao) FindActiveOrder(ctx context.Context, orderId string) (*model.StoredOrder, error) {
	for _, side := range []string{model.SideBuy, model.SideSell} {
		order, err := d.GetOrder(ctx, model.StatusActive, side, orderId)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}
	return nil, nil
}

// ListOrders 列出某状态某方向的全部订单, 按 id 排序
// 无法解码的文档跳过, 不影响其他订单
func (d *Dao) ListOrders(ctx context.Context, status, side string) ([]*model.StoredOrder, error) {
	docs, err := d.Store.List(ctx, model.OrderListPrefix(status, side))
	if err != nil {
		return nil, errors.Wrap(err, "failed on list orders")
	}

	orders := make([]*model.StoredOrder, 0, len(docs))
	for _, doc := range docs {
		order, err := DecodeOrder(doc.Payload)
		if err != nil {
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// ListActiveOrders 列出某方向的 active 订单
func (d *Dao) ListActiveOrders(ctx context.Context, side string) ([]*model.StoredOrder, error) {
	return d.ListOrders(ctx, model.StatusActive, side)
}

// ListSellOrdersByCollections 列出 active 卖单中所有集合都在 collections 内的订单
func (d *Dao) ListSellOrdersByCollections(ctx context.Context, collections []string) ([]*model.StoredOrder, error) {
	allowed := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		allowed[strings.ToLower(c)] = struct{}{}
	}

	sells, err := d.ListActiveOrders(ctx, model.SideSell)
	if err != nil {
		return nil, err
	}

	var out []*model.StoredOrder
	for _, sell := range sells {
		inScope := len(sell.Order.Nfts) > 0
		for _, c := range sell.Order.Collections() {
			if _, ok := allowed[c]; !ok {
				inScope = false
				break
			}
		}
		if inScope {
			out = append(out, sell)
		}
	}
	return out, nil
}

// NewOrderWrite 新订单写入 active 列表
func NewOrderWrite(order *model.StoredOrder, now time.Time) (docstore.Write, error) {
	order.Status = model.StatusActive
	order.CreateTime = now.UnixMilli()
	order.UpdateTime = order.CreateTime

	payload, err := EncodeOrder(order)
	if err != nil {
		return docstore.Write{}, err
	}
	return docstore.SetWrite(order.Key(), payload, docstore.SetOptions{}), nil
}

// MoveOrderWrites 状态迁移: 删除旧列表中的文档并写入新列表, 两条写入必须在同一批次中提交
// order 的状态与更新时间被修改为迁移后的值
func MoveOrderWrites(order *model.StoredOrder, toStatus string, now time.Time) ([]docstore.Write, error) {
	if order.Status == toStatus {
		return nil, errors.Errorf("order %s already %s", order.OrderId, toStatus)
	}

	from := order.Key()
	order.Status = toStatus
	order.UpdateTime = now.UnixMilli()

	payload, err := EncodeOrder(order)
	if err != nil {
		return nil, err
	}
	return []docstore.Write{
		docstore.DeleteWrite(from),
		docstore.SetWrite(order.Key(), payload, docstore.SetOptions{}),
	}, nil
}

func EncodeOrder(order *model.StoredOrder) ([]byte, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, errors.Wrap(err, "failed on encode order")
	}
	return payload, nil
}

func DecodeOrder(payload []byte) (*model.StoredOrder, error) {
	var order model.StoredOrder
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, errors.Wrap(err, "failed on decode order")
	}
	return &order, nil
}
