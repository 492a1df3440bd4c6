package service

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ProjectsTask/EasySwapOrderBook/dao"
	"github.com/ProjectsTask/EasySwapOrderBook/logger/xzap"
	"github.com/ProjectsTask/EasySwapOrderBook/service/batchwriter"
	"github.com/ProjectsTask/EasySwapOrderBook/service/config"
	"github.com/ProjectsTask/EasySwapOrderBook/service/mq"
	"github.com/ProjectsTask/EasySwapOrderBook/service/orderbook"
	"github.com/ProjectsTask/EasySwapOrderBook/service/orderhash"
	"github.com/ProjectsTask/EasySwapOrderBook/service/settlement"
	"github.com/ProjectsTask/EasySwapOrderBook/stores/docstore"
	"github.com/ProjectsTask/EasySwapOrderBook/stores/gdb"
	"github.com/ProjectsTask/EasySwapOrderBook/stores/xkv"
)

// Service 订单簿后台服务的核心组件
type Service struct {
	ctx       context.Context
	config    *config.Config
	store     docstore.Store            // 订单文档存储 (MySQL / pebble)
	kvStore   *xkv.Store                // KV存储 (Redis), 仅在启用撮合队列时创建
	writer    *batchwriter.Writer       // 批量写入
	executor  *settlement.KafkaExecutor // 撮合结果投递, 未启用时为 nil
	orderBook *orderbook.OrderBook      // 订单簿与撮合
}

// New 初始化一个新的 Service 实例
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	// 1. 初始化文档存储
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. 初始化批量写入
	writer := batchwriter.New(store,
		batchwriter.WithThreshold(cfg.BatchCfg.Threshold),
		batchwriter.WithAttempts(cfg.BatchCfg.Attempts),
		batchwriter.WithRetryInterval(time.Duration(cfg.BatchCfg.RetryIntervalMs)*time.Millisecond),
	)

	domain := orderhash.Domain{
		Name:            cfg.ContractCfg.DomainName,
		Version:         cfg.ContractCfg.DomainVersion,
		ChainId:         strconv.FormatInt(cfg.ChainCfg.ID, 10),
		ExchangeAddress: cfg.ContractCfg.ExchangeAddress,
	}
	if _, err := domain.Separator(); err != nil {
		store.Close()
		return nil, errors.Wrap(err, "invalid eip712 domain")
	}

	options := []orderbook.Option{
		orderbook.WithChainId(cfg.ChainCfg.ID),
		orderbook.WithIntervals(
			time.Duration(cfg.MatcherCfg.MatchIntervalSec)*time.Second,
			time.Duration(cfg.MatcherCfg.ExpireIntervalSec)*time.Second,
			time.Duration(cfg.MatcherCfg.QueueIntervalMs)*time.Millisecond,
		),
		orderbook.WithQueueBatch(cfg.MatcherCfg.QueueBatch),
	}

	// 3. 初始化撮合队列 (Redis)
	var kvStore *xkv.Store
	if cfg.MatcherCfg.EnableQueue {
		kvStore = xkv.NewStore(cfg.Kv.Redis)
		options = append(options, orderbook.WithQueue(mq.NewMatchQueue(kvStore, cfg.ProjectCfg.Name, cfg.ChainCfg.Name, cfg.ChainCfg.ID)))
	}

	// 4. 初始化撮合结果投递 (Kafka)
	var executor *settlement.KafkaExecutor
	if cfg.KafkaCfg.Enable {
		executor = settlement.NewKafkaExecutor(cfg.KafkaCfg.Brokers, cfg.KafkaCfg.Topic, cfg.ChainCfg.ID)
		options = append(options, orderbook.WithExecutor(executor))
	}

	// 5. 初始化订单簿
	book := orderbook.New(ctx, dao.New(ctx, store), writer, orderhash.NewIdentity(nil), domain, options...)

	return &Service{
		ctx:       ctx,
		config:    cfg,
		store:     store,
		kvStore:   kvStore,
		writer:    writer,
		executor:  executor,
		orderBook: book,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMysql:
		db, err := gdb.NewDB(cfg.DB)
		if err != nil {
			return nil, errors.Wrap(err, "failed on connect db")
		}
		store := docstore.NewGormStore(db)
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, errors.Wrap(err, "failed on migrate document table")
		}
		return store, nil
	case config.StoreDriverPebble:
		store, err := docstore.OpenPebble(cfg.Store.PebbleDir)
		if err != nil {
			return nil, errors.Wrap(err, "failed on open pebble")
		}
		return store, nil
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// OrderBook 订单簿, 供命令行/上层接口提交订单与撮合
func (s *Service) OrderBook() *orderbook.OrderBook {
	return s.orderBook
}

// Start 启动服务
func (s *Service) Start() error {
	// 1. 启动时先清理一次过期订单
	// 2. 启动撮合/过期/队列任务
	if _, err := s.orderBook.ExpireOrders(s.ctx); err != nil {
		return errors.Wrap(err, "failed on expire orders")
	}

	s.orderBook.Start()
	return nil
}

// Close 刷出未提交的写入并释放连接
func (s *Service) Close(ctx context.Context) error {
	var firstErr error
	if err := s.writer.Close(ctx); err != nil {
		xzap.WithContext(ctx).Error("failed on flush pending writes", zap.Error(err))
		firstErr = err
	}
	if s.executor != nil {
		if err := s.executor.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed on close kafka writer")
		}
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "failed on close store")
	}
	return firstErr
}
