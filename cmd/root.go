package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ProjectsTask/EasySwapOrderBook/service/config"
)

var cfgFile string

// rootCmd 不带子命令时的根命令
var rootCmd = &cobra.Command{
	Use:   "orderbook",
	Short: "easy swap off-chain order book.",
	Long:  "easy swap off-chain order book: order identity, storage and buy/sell matching.",
}

// Execute 把所有子命令挂到根命令并执行, 由 main.main 调用
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "./config/config.toml", "config file (default is $HOME/.config/config.toml)")
}

// initConfig 定位配置文件并加载环境变量
//  1. 读取当前目录的 .env (可选)
//  2. 优先使用 --config 指定的文件, 否则在 $HOME/.config 下查找 config.toml
//  3. 环境变量 EASYSWAP_XXX 覆盖配置文件中的同名 key
func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home + "/.config")
		viper.SetConfigName("config")
	}

	viper.SetConfigType("toml")
	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	} else {
		fmt.Println("failed on read config file:", err)
	}
}
