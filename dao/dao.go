package dao

import (
	"context"

	"github.com/ProjectsTask/EasySwapOrderBook/stores/docstore"
)

// Dao 数据访问对象
// 封装订单簿文档的读取与文档布局 (key 路径, 编码), 写入由 BatchedWriter 统一提交
type Dao struct {
	ctx context.Context

	Store docstore.Store // 文档存储 (MySQL / pebble)
}

// New 创建一个新的 Dao 实例
// 参数:
//
//	ctx: 上下文
//	store: 文档存储实例
//
// 返回:
//
//	*Dao: 初始化的 Dao 指针
func New(ctx context.Context, store docstore.Store) *Dao {
	return &Dao{
		ctx:   ctx,
		Store: store,
	}
}
