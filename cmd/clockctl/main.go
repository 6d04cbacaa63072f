package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"wifi-clock/internal/envfile"
	"wifi-clock/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		log.Fatalf("错误: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clockctl",
		Short: "WiFi 时钟维护工具",
		Long: `clockctl 在设备上直接操作硬件与配置文件，不经过 HTTP 服务：
  i2c-scan       扫描 I2C 总线
  rtc            读取/设置/校准 DS1307
  display-test   显示测试图
  config         查看/重置配置`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			envfile.Bootstrap()
			logger.SetOutput(os.Stderr)
			if v, _ := cmd.Flags().GetBool("debug"); v {
				logger.SetDebug(true)
			}
		},
	}
	root.PersistentFlags().Bool("debug", false, "输出调试日志")

	root.AddCommand(
		newI2CScanCmd(),
		newRTCCmd(),
		newDisplayTestCmd(),
		newConfigCmd(),
	)
	return root
}

func printf(cmd *cobra.Command, format string, a ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, a...)
}
