package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"compgrid/internal/collector"
	"compgrid/internal/config"
	"compgrid/internal/logger"
	"compgrid/internal/notifier"
	"compgrid/internal/recorder"
	"compgrid/internal/report"
)

// app holds the collaborators shared by the run and serve commands.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	recorder recorder.Recorder
	telegram *notifier.TelegramNotifier
	runner   *report.Runner
	closers  []io.Closer
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log, logCloser, err := logger.New(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File, Pretty: cfg.Log.Pretty})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, closers: []io.Closer{logCloser}}

	if err := cfg.Validate(); err != nil {
		a.Close()
		return nil, err
	}

	q, qCloser, err := collector.Open(collector.Source{
		Driver:           cfg.DataSource.Driver,
		DSN:              cfg.DataSource.DSN,
		SnowflakeProfile: cfg.DataSource.SnowflakeProfile,
		APIKey:           cfg.DataSource.APIKey,
		Proxy:            cfg.Proxy,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, qCloser)
	log.Info().Str("driver", cfg.DataSource.Driver).Msg("data source opened")

	a.recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			a.recorder = sr
			a.closers = append(a.closers, sr)
		}
	}

	deliverers := map[string]notifier.Deliverer{
		config.TargetStdout: &notifier.StdoutNotifier{W: os.Stdout},
	}
	if cfg.Telegram.BotToken != "" {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		deliverers[config.TargetTelegram] = a.telegram
	}
	if cfg.Slack.BotToken != "" {
		deliverers[config.TargetSlack] = notifier.NewSlackNotifier(cfg.Slack.BotToken, cfg.Slack.BaseURL, cfg.Proxy, log)
	}

	if cfg.Email.Host != "" {
		deliverers[config.TargetEmail] = notifier.NewEmailNotifier(
			cfg.Email.Host, cfg.Email.Port, cfg.Email.Username, cfg.Email.Password,
			cfg.Email.From, cfg.Email.TLS, log,
		)
	}

	col := collector.NewCollector(q, cfg.DataSource.MaxConcurrency, cfg.DataSource.QueryTimeout, log)
	a.runner = report.NewRunner(col, a.recorder, deliverers, log)
	return a, nil
}

// Close releases collaborators in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn().Err(err).Msg("close")
		}
	}
}
