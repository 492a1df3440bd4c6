package xkv

import (
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/kv"
	"github.com/zeromicro/go-zero/core/stores/redis"
)

// Store Redis KV 存储, 按 key 一致性哈希到多个节点
type Store struct {
	kv.Store
}

// NodeConf 单个 Redis 节点配置
type NodeConf struct {
	Host string `toml:"host" mapstructure:"host" json:"host"` // Redis 主机地址
	Type string `toml:"type" mapstructure:"type" json:"type"` // Redis 类型 (node, cluster)
	Pass string `toml:"pass" mapstructure:"pass" json:"pass"` // Redis 密码
}

// NewStore 根据节点列表创建 Store
func NewStore(nodes []*NodeConf) *Store {
	var kvConf kv.KvConf
	for _, con := range nodes {
		kvConf = append(kvConf, cache.NodeConf{
			RedisConf: redis.RedisConf{
				Host: con.Host,
				Type: con.Type,
				Pass: con.Pass,
			},
			Weight: 1,
		})
	}

	return &Store{Store: kv.NewStore(kvConf)}
}
