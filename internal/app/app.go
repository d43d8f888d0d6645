package app

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inventory-alerts/internal/alerting"
	"inventory-alerts/internal/analyzer"
	"inventory-alerts/internal/config"
	"inventory-alerts/internal/insight"
	"inventory-alerts/internal/scheduler"
	"inventory-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newInsight() insight.Generator {
	if !a.Config.Insight.Enabled {
		return insight.Noop{}
	}
	cfg := a.Config.Insight
	return insight.NewClient(insight.ClientOptions{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	}, a.Logger)
}

// channelsFor assembles the notification fan-out for a single shop. Channel
// selection follows the shop's settings filtered by what the deployment has
// credentials for.
func (a *App) channelsFor(shop storage.Shop) []alerting.Channel {
	cfg := a.Config.Alerting
	if !cfg.Enabled {
		return nil
	}

	enabled := shop.Channels
	if len(enabled) == 0 {
		enabled = cfg.Channels
	}

	var channels []alerting.Channel
	for _, name := range enabled {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "webhook":
			if !cfg.Webhook.Enabled || shop.WebhookURL == "" {
				continue
			}
			channels = append(channels, alerting.NewWebhookChannel(alerting.WebhookOptions{
				URL:            shop.WebhookURL,
				Secret:         shop.WebhookSecret,
				Timeout:        cfg.Webhook.Timeout,
				RetryAttempts:  cfg.Webhook.RetryAttempts,
				RetryBaseDelay: cfg.Webhook.RetryBaseDelay,
				UserAgent:      cfg.Webhook.UserAgent,
			}, a.Logger))
		case "email":
			if !cfg.Email.Enabled || shop.NotifyEmail == "" {
				continue
			}
			channels = append(channels, alerting.NewEmailChannel(alerting.EmailOptions{
				BaseURL:     cfg.Email.BaseURL,
				APIKey:      cfg.Email.APIKey,
				APISecret:   cfg.Email.APISecret,
				SenderEmail: cfg.Email.SenderEmail,
				SenderName:  cfg.Email.SenderName,
				Timeout:     cfg.Email.Timeout,
			}, shop.NotifyEmail, a.Logger))
		case "chat":
			if !cfg.Chat.Enabled {
				continue
			}
			channels = append(channels, alerting.NewChatChannel(
				cfg.Chat.BotToken, cfg.Chat.ChatID, cfg.Chat.APIBase, cfg.Chat.Timeout, a.Logger))
		case "sms":
			if !cfg.SMS.Enabled || shop.NotifyPhone == "" {
				continue
			}
			channels = append(channels, alerting.NewSMSChannel(alerting.SMSOptions{
				BaseURL:    cfg.SMS.APIBase,
				AccountSID: cfg.SMS.AccountSID,
				AuthToken:  cfg.SMS.AuthToken,
				FromNumber: cfg.SMS.FromNumber,
				Timeout:    cfg.SMS.Timeout,
			}, shop.NotifyPhone, a.Logger))
		default:
			a.Logger.Warn().Str("channel", name).Str("shop_id", shop.ID).Msg("unknown notification channel ignored")
		}
	}
	return channels
}

func (a *App) dispatcherFactory(sink alerting.DeliverySink) analyzer.DispatcherFactory {
	return func(shop storage.Shop) analyzer.Dispatcher {
		return alerting.NewDispatcher(a.channelsFor(shop), sink, a.Logger)
	}
}

func (a *App) newAnalyzer(store *storage.Store) *analyzer.Analyzer {
	var sink alerting.DeliverySink
	var locker storage.AdvisoryLocker
	if store != nil {
		sink = store
		locker = store
	}

	deps := analyzer.Deps{
		Shops:       store,
		Products:    store,
		Samples:     store,
		Predictions: store,
		Alerts:      store,
		Locker:      locker,
		Dispatch:    a.dispatcherFactory(sink),
		Insights:    a.newInsight(),
	}

	return analyzer.New(deps, analyzer.Options{
		SampleWindowDays:            a.Config.Analysis.SampleWindowDays,
		DefaultLowStockUnits:        a.Config.Analysis.LowStockUnits,
		DefaultCriticalStockUnits:   a.Config.Analysis.CriticalStockUnits,
		DefaultCriticalStockoutDays: a.Config.Analysis.CriticalStockoutDays,
	}, a.Logger)
}

// Run executes the long-running analysis service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required for the run command")
	}
	defer closeStore()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   true,
	}, a.Logger)

	runner := a.newAnalyzer(store)

	a.Logger.Info().Msg("starting analysis service")
	err = sched.Run(ctx, func(ctx context.Context, cycle time.Time) error {
		return runner.RunAll(ctx)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("analysis service stopped")
	return nil
}

// ExportOptions hold parameters for exporting velocity history.
type ExportOptions struct {
	ProductID string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
