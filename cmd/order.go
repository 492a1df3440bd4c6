package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ProjectsTask/EasySwapOrderBook/logger/xzap"
	"github.com/ProjectsTask/EasySwapOrderBook/model"
	"github.com/ProjectsTask/EasySwapOrderBook/service"
	"github.com/ProjectsTask/EasySwapOrderBook/service/config"
)

var orderFlags struct {
	file  string
	maker string
	id    string
}

// OrderCmd 订单簿运维命令
var OrderCmd = &cobra.Command{
	Use:   "order",
	Short: "submit, cancel and match orders against the configured store.",
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "submit a signed order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if orderFlags.file == "" || orderFlags.maker == "" {
			return errors.New("--file and --maker are required")
		}
		raw, err := os.ReadFile(orderFlags.file)
		if err != nil {
			return errors.Wrap(err, "failed on read order file")
		}
		var order model.Order
		if err := json.Unmarshal(raw, &order); err != nil {
			return errors.Wrap(err, "failed on decode order")
		}

		return withService(cmd.Context(), func(ctx context.Context, s *service.Service) error {
			id, err := s.OrderBook().SubmitOrder(ctx, &order, orderFlags.maker)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"orderId": id})
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "cancel an active order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if orderFlags.id == "" {
			return errors.New("--id is required")
		}
		return withService(cmd.Context(), func(ctx context.Context, s *service.Service) error {
			order, err := s.OrderBook().CancelOrder(ctx, orderFlags.id)
			if err != nil {
				return err
			}
			return printJSON(cmd, order)
		})
	},
}

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "list current buy/sell matches without executing them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, s *service.Service) error {
			matches, err := s.OrderBook().MarketMatches(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, matches)
		})
	},
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "match an active buy order and move it with its sell orders to inactive.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if orderFlags.id == "" {
			return errors.New("--id is required")
		}
		return withService(cmd.Context(), func(ctx context.Context, s *service.Service) error {
			match, err := s.OrderBook().ExecuteBuyOrder(ctx, orderFlags.id)
			if err != nil {
				return err
			}
			return printJSON(cmd, match)
		})
	},
}

// withService 按配置创建服务, 执行 fn 后刷出写入并关闭
func withService(ctx context.Context, fn func(ctx context.Context, s *service.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.UnmarshalCmdConfig()
	if err != nil {
		return errors.Wrap(err, "failed on unmarshal config")
	}
	if _, err := xzap.SetUp(*cfg.Log); err != nil {
		return errors.Wrap(err, "failed on set up logger")
	}

	s, err := service.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(ctx); err != nil {
			xzap.WithContext(ctx).Error("failed on close service", zap.Error(err))
		}
	}()

	return fn(ctx, s)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	submitCmd.Flags().StringVarP(&orderFlags.file, "file", "f", "", "signed order json file")
	submitCmd.Flags().StringVar(&orderFlags.maker, "maker", "", "order maker address")
	cancelCmd.Flags().StringVar(&orderFlags.id, "id", "", "order id")
	executeCmd.Flags().StringVar(&orderFlags.id, "id", "", "buy order id")

	OrderCmd.AddCommand(submitCmd, cancelCmd, matchesCmd, executeCmd)
	rootCmd.AddCommand(OrderCmd)
}
