package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ProjectsTask/EasySwapOrderBook/model"
	"github.com/ProjectsTask/EasySwapOrderBook/service/orderhash"
)

var orderIdFlags struct {
	file          string
	maker         string
	chainId       string
	exchange      string
	domainName    string
	domainVersion string
}

// OrderIdCmd 离线计算订单 id, domain 参数未指定时取配置文件中的值
var OrderIdCmd = &cobra.Command{
	Use:   "orderid",
	Short: "compute the eip712 order id of a signed order.",
	Long:  "compute the eip712 order id of a signed order read from --file or stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := io.Reader(os.Stdin)
		if orderIdFlags.file != "" {
			f, err := os.Open(orderIdFlags.file)
			if err != nil {
				return errors.Wrap(err, "failed on open order file")
			}
			defer f.Close()
			in = f
		}

		id, err := computeOrderId(in, orderIdFlags.maker, orderIdDomain())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func orderIdDomain() orderhash.Domain {
	return orderhash.Domain{
		Name:            flagOrConfig(orderIdFlags.domainName, "contract_cfg.domain_name"),
		Version:         flagOrConfig(orderIdFlags.domainVersion, "contract_cfg.domain_version"),
		ChainId:         flagOrConfig(orderIdFlags.chainId, "chain_cfg.id"),
		ExchangeAddress: flagOrConfig(orderIdFlags.exchange, "contract_cfg.exchange_address"),
	}
}

func flagOrConfig(value, key string) string {
	if value != "" {
		return value
	}
	return viper.GetString(key)
}

// computeOrderId 解析订单 JSON 并计算 id, maker 为空时使用订单中的 signer
func computeOrderId(r io.Reader, maker string, domain orderhash.Domain) (string, error) {
	var order model.Order
	if err := json.NewDecoder(r).Decode(&order); err != nil {
		return "", errors.Wrap(err, "failed on decode order")
	}
	if maker == "" {
		maker = order.Signer
	}

	digest, err := orderhash.NewIdentity(zap.NewNop()).ComputeOrderId(&order, maker, domain)
	if err != nil {
		return "", err
	}
	return digest.Hex(), nil
}

func init() {
	flags := OrderIdCmd.Flags()
	flags.StringVarP(&orderIdFlags.file, "file", "f", "", "signed order json file (default stdin)")
	flags.StringVar(&orderIdFlags.maker, "maker", "", "order maker address (default the order signer)")
	flags.StringVar(&orderIdFlags.chainId, "chain-id", "", "eip712 domain chain id")
	flags.StringVar(&orderIdFlags.exchange, "exchange", "", "exchange contract address")
	flags.StringVar(&orderIdFlags.domainName, "domain-name", "", "eip712 domain name")
	flags.StringVar(&orderIdFlags.domainVersion, "domain-version", "", "eip712 domain version")

	rootCmd.AddCommand(OrderIdCmd)
}
