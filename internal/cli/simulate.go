package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"inventory-alerts/internal/app"
)

var (
	simulateStock   int64
	simulateDaily   int64
	simulateWebhook string
	simulateSecret  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次库存告警并验证通知通道",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateStock < 0 {
			return errors.New("--stock 不能为负数")
		}
		if simulateDaily <= 0 {
			return errors.New("--daily-sales 必须大于 0")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Stock:         simulateStock,
			DailySales:    simulateDaily,
			WebhookURL:    simulateWebhook,
			WebhookSecret: simulateSecret,
		})
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateStock, "stock", 5, "当前库存数量")
	simulateCmd.Flags().Int64Var(&simulateDaily, "daily-sales", 10, "近 7 天日均销量")
	simulateCmd.Flags().StringVar(&simulateWebhook, "webhook-url", "", "Webhook 接收地址")
	simulateCmd.Flags().StringVar(&simulateSecret, "webhook-secret", "", "Webhook 签名密钥")
}
