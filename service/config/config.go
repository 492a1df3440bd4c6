package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/ProjectsTask/EasySwapOrderBook/common/utils"
	"github.com/ProjectsTask/EasySwapOrderBook/logger/xzap"
	"github.com/ProjectsTask/EasySwapOrderBook/stores/gdb"
	"github.com/ProjectsTask/EasySwapOrderBook/stores/xkv"
)

const (
	StoreDriverMysql  = "mysql"
	StoreDriverPebble = "pebble"

	EnvPrefix = "EASYSWAP"
)

// Config 定义了应用程序的全局配置结构
type Config struct {
	Monitor     *Monitor      `toml:"monitor" mapstructure:"monitor" json:"monitor"`                // 监控相关配置
	Log         *xzap.LogConf `toml:"log" mapstructure:"log" json:"log"`                            // 日志配置
	Kv          *KvConf       `toml:"kv" mapstructure:"kv" json:"kv"`                               // KV存储配置 (Redis)
	DB          *gdb.Config   `toml:"db" mapstructure:"db" json:"db"`                               // 数据库配置 (MySQL)
	Store       StoreCfg      `toml:"store" mapstructure:"store" json:"store"`                      // 订单簿文档存储
	ChainCfg    ChainCfg      `toml:"chain_cfg" mapstructure:"chain_cfg" json:"chain_cfg"`          // 链信息配置
	ContractCfg ContractCfg   `toml:"contract_cfg" mapstructure:"contract_cfg" json:"contract_cfg"` // 交易所合约与 EIP-712 domain
	ProjectCfg  ProjectCfg    `toml:"project_cfg" mapstructure:"project_cfg" json:"project_cfg"`    // 项目名称配置
	BatchCfg    BatchCfg      `toml:"batch_cfg" mapstructure:"batch_cfg" json:"batch_cfg"`          // 批量写入配置
	MatcherCfg  MatcherCfg    `toml:"matcher_cfg" mapstructure:"matcher_cfg" json:"matcher_cfg"`    // 撮合任务配置
	KafkaCfg    KafkaCfg      `toml:"kafka_cfg" mapstructure:"kafka_cfg" json:"kafka_cfg"`          // 撮合结果投递
}

// ChainCfg 定义链的基本信息
type ChainCfg struct {
	Name string `toml:"name" mapstructure:"name" json:"name"` // 链名称 (如: eth, sepolia)
	ID   int64  `toml:"id" mapstructure:"id" json:"id"`       // Chain ID
}

// ContractCfg 交易所合约地址及 EIP-712 domain 名称/版本
type ContractCfg struct {
	ExchangeAddress string `toml:"exchange_address" mapstructure:"exchange_address" json:"exchange_address"`
	DomainName      string `toml:"domain_name" mapstructure:"domain_name" json:"domain_name"`
	DomainVersion   string `toml:"domain_version" mapstructure:"domain_version" json:"domain_version"`
}

// Monitor 定义监控配置
type Monitor struct {
	PprofEnable bool  `toml:"pprof_enable" mapstructure:"pprof_enable" json:"pprof_enable"` // 是否开启 Pprof
	PprofPort   int64 `toml:"pprof_port" mapstructure:"pprof_port" json:"pprof_port"`       // Pprof 监听端口
}

// ProjectCfg 定义项目配置
type ProjectCfg struct {
	Name string `toml:"name" mapstructure:"name" json:"name"` // 项目名称
}

// KvConf 定义 Key-Value 存储配置
type KvConf struct {
	Redis []*xkv.NodeConf `toml:"redis" mapstructure:"redis" json:"redis"` // Redis 列表（可能支持多实例）
}

// StoreCfg 文档存储: mysql 使用 [db] 配置, pebble 使用本地目录
type StoreCfg struct {
	Driver    string `toml:"driver" mapstructure:"driver" json:"driver"`
	PebbleDir string `toml:"pebble_dir" mapstructure:"pebble_dir" json:"pebble_dir"`
}

type BatchCfg struct {
	Threshold       int `toml:"threshold" mapstructure:"threshold" json:"threshold"`
	Attempts        int `toml:"attempts" mapstructure:"attempts" json:"attempts"`
	RetryIntervalMs int `toml:"retry_interval_ms" mapstructure:"retry_interval_ms" json:"retry_interval_ms"`
}

type MatcherCfg struct {
	MatchIntervalSec  int  `toml:"match_interval_sec" mapstructure:"match_interval_sec" json:"match_interval_sec"`
	ExpireIntervalSec int  `toml:"expire_interval_sec" mapstructure:"expire_interval_sec" json:"expire_interval_sec"`
	QueueIntervalMs   int  `toml:"queue_interval_ms" mapstructure:"queue_interval_ms" json:"queue_interval_ms"`
	QueueBatch        int  `toml:"queue_batch" mapstructure:"queue_batch" json:"queue_batch"`
	EnableQueue       bool `toml:"enable_queue" mapstructure:"enable_queue" json:"enable_queue"` // 是否启用 Redis 撮合队列
}

type KafkaCfg struct {
	Enable  bool     `toml:"enable" mapstructure:"enable" json:"enable"`
	Brokers []string `toml:"brokers" mapstructure:"brokers" json:"brokers"`
	Topic   string   `toml:"topic" mapstructure:"topic" json:"topic"`
}

// Validate 检查启动必需的配置
func (c *Config) Validate() error {
	if c.Log == nil {
		return errors.New("missing [log] config")
	}
	if c.ChainCfg.ID <= 0 || c.ChainCfg.Name == "" {
		return errors.New("invalid chain_cfg config")
	}
	if !utils.IsAddress(c.ContractCfg.ExchangeAddress) {
		return errors.Errorf("invalid exchange address %q", c.ContractCfg.ExchangeAddress)
	}
	switch c.Store.Driver {
	case StoreDriverMysql:
		if c.DB == nil {
			return errors.New("store driver mysql needs [db] config")
		}
	case StoreDriverPebble:
		if c.Store.PebbleDir == "" {
			return errors.New("store driver pebble needs pebble_dir")
		}
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.MatcherCfg.EnableQueue && (c.Kv == nil || len(c.Kv.Redis) == 0) {
		return errors.New("match queue needs [kv] redis config")
	}
	if c.KafkaCfg.Enable && (len(c.KafkaCfg.Brokers) == 0 || c.KafkaCfg.Topic == "") {
		return errors.New("kafka_cfg needs brokers and topic")
	}
	return nil
}

// UnmarshalConfig 加载并解析指定路径的配置文件
// @params configFilePath: 配置文件路径
func UnmarshalConfig(configFilePath string) (*Config, error) {
	viper.SetConfigFile(configFilePath) // 设置配置文件路径
	viper.SetConfigType("toml")         // 设置配置文件类型为 TOML
	viper.AutomaticEnv()                // 自动读取环境变量
	viper.SetEnvPrefix(EnvPrefix)       // 设置环境变量前缀，如 EASYSWAP_DB_HOST
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer) // 替换 key 中的 . 为 _

	if err := viper.ReadInConfig(); err != nil { // 读取配置
		return nil, err
	}

	var c Config
	if err := viper.Unmarshal(&c); err != nil { // 解析到结构体
		return nil, err
	}

	return &c, nil
}

// UnmarshalCmdConfig 解析 cobra 初始化时已由 viper 定位好的配置文件
func UnmarshalCmdConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var c Config

	if err := viper.Unmarshal(&c); err != nil {
		return nil, err
	}

	return &c, nil
}
