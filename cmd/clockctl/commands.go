package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"wifi-clock/config"
	"wifi-clock/internal/display"
	"wifi-clock/internal/rtc"
	"wifi-clock/internal/system"
	"wifi-clock/internal/timesync"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newI2CScanCmd() *cobra.Command {
	var busName string
	cmd := &cobra.Command{
		Use:   "i2c-scan",
		Short: "扫描 I2C 总线上有应答的设备",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bus, err := rtc.OpenBus(busName)
			if err != nil {
				return err
			}
			defer bus.Close()

			found := rtc.Scan(bus)
			if len(found) == 0 {
				printf(cmd, "未发现 I2C 设备\n")
				return nil
			}
			for _, addr := range found {
				note := ""
				if addr == rtc.DefaultAddress {
					note = "  (DS1307)"
				}
				printf(cmd, "%s%s\n", rtc.FormatAddr(addr), note)
			}
			printf(cmd, "共 %d 个设备\n", len(found))
			return nil
		},
	}
	cmd.Flags().StringVar(&busName, "bus", "", "I2C 总线名（默认第一条）")
	return cmd
}

// openDS1307 按配置打开 RTC，返回关闭函数
func openDS1307(cfg *config.Config) (*rtc.DS1307, func(), error) {
	bus, err := rtc.OpenBus(cfg.RTC.Bus)
	if err != nil {
		return nil, nil, err
	}
	dev := rtc.New(bus, cfg.RTC.Address, timesync.Zone(cfg.Display.TimezoneOffset))
	return dev, func() { _ = bus.Close() }, nil
}

func newRTCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rtc",
		Short: "DS1307 实时时钟",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "读取 RTC 时间",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _ := config.LoadConfig()
			dev, closeFn, err := openDS1307(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			t, err := dev.Read()
			if err != nil {
				return err
			}
			valid := "有效"
			if !rtc.Valid(t) {
				valid = "无效（需要校时）"
			}
			printf(cmd, "%s  %s\n", t.Format("2006-01-02 15:04:05 -07:00"), valid)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <RFC3339>",
		Short: "写入 RTC 时间，例如 2024-05-01T12:00:00+08:00",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("时间格式错误: %w", err)
			}
			cfg, _ := config.LoadConfig()
			dev, closeFn, err := openDS1307(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := dev.Set(t); err != nil {
				return err
			}
			printf(cmd, "RTC 已设置为 %s\n", t.In(timesync.Zone(cfg.Display.TimezoneOffset)).Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	var server string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "从 NTP 获取时间写入 RTC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _ := config.LoadConfig()
			if server == "" {
				server = cfg.NTP.Server
			}
			dev, closeFn, err := openDS1307(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			clk := timesync.NewClock(dev, cfg.Display.TimezoneOffset)
			syncer := timesync.NewSyncer(timesync.NewNTPClient(), server, clk, nil)
			if err := syncer.SyncRTC(cmd.Context()); err != nil {
				return err
			}
			printf(cmd, "已从 %s 校时: %s\n", server, clk.Now().Format("2006-01-02 15:04:05 -07:00"))
			return nil
		},
	}
	syncCmd.Flags().StringVar(&server, "server", "", "NTP 服务器（默认取配置）")

	cmd.AddCommand(get, set, syncCmd)
	return cmd
}

func newDisplayTestCmd() *cobra.Command {
	var backend string
	var seconds int
	var message string
	cmd := &cobra.Command{
		Use:   "display-test",
		Short: "显示测试图（或一条提示）后退出",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _ := config.LoadConfig()
			if backend != "" {
				cfg.Display.Backend = backend
			}
			disp, err := display.NewDisplay(cfg)
			if err != nil {
				return err
			}
			mgr := display.NewManager(disp, nil)
			defer mgr.Close()

			ctx := cmd.Context()
			d := time.Duration(seconds) * time.Second
			if message != "" {
				mgr.Flash(ctx, message, d)
			} else {
				mgr.FlashTestPattern(ctx, d)
			}
			printf(cmd, "已显示 %d 帧\n", mgr.Frames())
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "显示后端（默认取配置）")
	cmd.Flags().IntVar(&seconds, "seconds", 3, "显示时长（秒）")
	cmd.Flags().StringVar(&message, "message", "", "显示文字而不是测试图")
	return cmd
}

// maskSecrets 输出配置时隐藏密码类字段
func maskSecrets(cfg *config.Config) *config.Config {
	c := cfg.Clone()
	for _, p := range []*string{&c.WiFi.Password, &c.Portal.Password, &c.Weather.APIKey, &c.MQTT.Password, &c.Auth.PasswordHash} {
		if *p != "" {
			*p = "***"
		}
	}
	return c
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "查看或重置配置文件",
	}

	var showSecrets bool
	show := &cobra.Command{
		Use:   "show [path]",
		Short: "打印配置；path 为 gjson 路径，例如 display.brightness",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if !showSecrets {
				cfg = maskSecrets(cfg)
			}
			raw, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			if len(args) == 0 {
				printf(cmd, "# %s\n%s\n", config.GetConfigPath(), raw)
				return nil
			}
			v := gjson.GetBytes(raw, args[0])
			if !v.Exists() {
				return fmt.Errorf("配置中没有 %s", args[0])
			}
			printf(cmd, "%s\n", v.String())
			return nil
		},
	}
	show.Flags().BoolVar(&showSecrets, "secrets", false, "显示密码等敏感字段")

	var factory bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "删除配置文件（--factory 同时删除历史库与日志）",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if factory {
				cfg, _ := config.LoadConfig()
				for _, p := range system.FactoryReset(cfg) {
					printf(cmd, "已删除 %s\n", p)
				}
				return nil
			}
			if err := config.Reset(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			printf(cmd, "已删除 %s\n", config.GetConfigPath())
			return nil
		},
	}
	reset.Flags().BoolVar(&factory, "factory", false, "恢复出厂设置")

	cmd.AddCommand(show, reset)
	return cmd
}
