package cmd

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/threading"
	"go.uber.org/zap"

	"github.com/ProjectsTask/EasySwapOrderBook/logger/xzap"
	"github.com/ProjectsTask/EasySwapOrderBook/service"
	"github.com/ProjectsTask/EasySwapOrderBook/service/config"
)

const shutdownTimeout = 30 * time.Second

// DaemonCmd 启动订单簿后台服务: 周期撮合, 过期清理, 消费撮合队列
var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "run easy swap order book matcher.",
	Long:  "run easy swap order book matcher.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// 服务启动失败通知
		onStartExit := make(chan error, 1)
		started := make(chan *service.Service, 1)

		threading.GoSafe(func() {
			// 1. 读取和解析配置文件
			cfg, err := config.UnmarshalCmdConfig()
			if err != nil {
				xzap.WithContext(ctx).Error("Failed to unmarshal config", zap.Error(err))
				onStartExit <- err
				return
			}

			// 2. 初始化日志模块
			if _, err = xzap.SetUp(*cfg.Log); err != nil {
				xzap.WithContext(ctx).Error("Failed to set up logger", zap.Error(err))
				onStartExit <- err
				return
			}

			xzap.WithContext(ctx).Info("order book server start", zap.Any("config", cfg))

			// 3. 初始化服务 (存储, 批量写入, 撮合队列, 结算投递)
			s, err := service.New(ctx, cfg)
			if err != nil {
				xzap.WithContext(ctx).Error("Failed to create order book server", zap.Error(err))
				onStartExit <- err
				return
			}

			// 4. 启动撮合/过期任务
			if err := s.Start(); err != nil {
				xzap.WithContext(ctx).Error("Failed to start order book server", zap.Error(err))
				_ = s.Close(ctx)
				onStartExit <- err
				return
			}
			started <- s

			// 5. 如果配置开启了 Pprof，启动 HTTP 服务进行性能监控
			if cfg.Monitor != nil && cfg.Monitor.PprofEnable {
				addr := fmt.Sprintf("0.0.0.0:%d", cfg.Monitor.PprofPort)
				if err := http.ListenAndServe(addr, nil); err != nil {
					xzap.WithContext(ctx).Warn("pprof server stopped", zap.Error(err))
				}
			}
		})

		onSignal := make(chan os.Signal, 1)
		signal.Notify(onSignal, syscall.SIGINT, syscall.SIGTERM)

		var s *service.Service
		for s == nil {
			select {
			case s = <-started:
			case err := <-onStartExit:
				xzap.WithContext(ctx).Error("Exit by error", zap.Error(err))
				return
			case sig := <-onSignal:
				xzap.WithContext(ctx).Info("Exit by signal", zap.String("signal", sig.String()))
				return
			}
		}

		sig := <-onSignal
		xzap.WithContext(ctx).Info("Exit by signal", zap.String("signal", sig.String()))
		cancel()

		// 停止后刷出未提交的写入
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		if err := s.Close(closeCtx); err != nil {
			xzap.WithContext(closeCtx).Error("Failed to close order book server", zap.Error(err))
		}
	},
}

func init() {
	// go run main.go daemon
	rootCmd.AddCommand(DaemonCmd)
}
