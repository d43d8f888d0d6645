package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent alerts and their delivery attempts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show alerts")
	}
	defer closeStore()

	alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Created (UTC)\tShop\tProduct\tType\tSeverity\tDays Left\tActive\tNotified\tTitle")

		for _, alert := range alerts {
			days := "-"
			if alert.DaysUntilStockout != nil {
				days = fmt.Sprintf("%d", *alert.DaysUntilStockout)
			}
			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\t%s\t%s\t%s\t%t\t%t\t%s\n",
				alert.CreatedAt.UTC().Format(time.RFC3339),
				alert.ShopID,
				alert.ProductID,
				alert.Type,
				alert.Severity,
				days,
				alert.Active,
				alert.Notified,
				sanitizeInline(alert.Title),
			)
		}
		writer.Flush()
	}

	deliveries, err := store.ListRecentDeliveries(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(deliveries) == 0 {
		return nil
	}

	fmt.Fprintln(os.Stdout)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Created (UTC)\tChannel\tRecipient\tStatus\tRetries\tError")

	for _, delivery := range deliveries {
		errMsg := ""
		if delivery.Error != nil {
			errMsg = sanitizeInline(*delivery.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\t%s\n",
			delivery.CreatedAt.UTC().Format(time.RFC3339),
			delivery.Channel,
			sanitizeInline(delivery.Recipient),
			delivery.Status,
			delivery.RetryCount,
			errMsg,
		)
	}
	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
