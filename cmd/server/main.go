package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/willemschots/cardhub/assets"
	"github.com/willemschots/cardhub/internal"
	"github.com/willemschots/cardhub/internal/account"
	accountdb "github.com/willemschots/cardhub/internal/account/db"
	"github.com/willemschots/cardhub/internal/card"
	carddb "github.com/willemschots/cardhub/internal/card/db"
	"github.com/willemschots/cardhub/internal/db"
	"github.com/willemschots/cardhub/internal/db/migrate"
	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/email/mailgun"
	"github.com/willemschots/cardhub/internal/email/postmark"
	"github.com/willemschots/cardhub/internal/email/view"
	"github.com/willemschots/cardhub/internal/events"
	"github.com/willemschots/cardhub/internal/web"
	"github.com/willemschots/cardhub/migrations"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env file is fine, the environment is used as is.
	_ = godotenv.Load()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	logger := slog.New(slog.NewTextHandler(w, nil))

	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("failed to get config from environment", "error", err)
		return 1
	}

	writeDB, readDB, err := openDBs(ctx, cfg.db)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return 1
	}
	defer func() {
		err := errors.Join(readDB.Close(), writeDB.Close())
		if err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	emailService, err := newEmailService(cfg.email, logger)
	if err != nil {
		logger.Error("failed to create email service", "error", err)
		return 1
	}

	js, err := connectNATS(cfg.nats, logger)
	if err != nil {
		logger.Error("failed to connect to nats", "error", err)
		return 1
	}

	var publisher card.Publisher = events.Nop{}
	if js != nil {
		publisher = js
		defer js.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cardService := card.NewService(
		carddb.New(readDB, writeDB),
		card.NewMailNotifier(emailService),
		publisher,
		card.NewMetrics(reg),
		func(err error) {
			logger.Error("error in card service", "error", err)
		},
		cfg.card,
	)

	accountService, err := account.NewService(accountdb.New(readDB, writeDB), cfg.account)
	if err != nil {
		logger.Error("failed to create account service", "error", err)
		return 1
	}

	if js != nil {
		sub, err := js.Subscribe(ctx, account.SubjectSlotsChanged, "cardhub-slots",
			accountService.SlotChangeHandler(func(err error) {
				logger.Error("error in slot change", "error", err)
			}),
		)
		if err != nil {
			logger.Error("failed to subscribe to slot changes", "error", err)
			return 1
		}
		defer sub.Close()
	}

	srv := &http.Server{
		Addr:         cfg.http.addr,
		ReadTimeout:  cfg.http.readTimeout,
		WriteTimeout: cfg.http.writeTimeout,
		IdleTimeout:  cfg.http.idleTimeout,
		Handler: web.NewServer(&web.ServerDeps{
			Logger:   logger,
			Cards:    cardService,
			Accounts: accountService,
			Gatherer: reg,
		}, cfg.http.server),
	}

	// We need to run two tasks concurrently:
	// - Listen and serving of the HTTP server.
	// - Waiting for a signal to stop the server.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"addr", cfg.http.addr,
			"emailDriver", cfg.email.driver,
			internal.BuildAttr(),
		)
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutine.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.http.shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()

	// Let the background workers send their emails and events.
	logger.Info("waiting for card service workers")
	cardService.Wait()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}

// openDBs opens the write and read pools and runs pending migrations.
// The write pool is opened first, so the database file exists for the
// read only pool.
func openDBs(ctx context.Context, cfg dbConfig) (*sql.DB, *sql.DB, error) {
	writeDB, err := db.OpenSQLite(cfg.file, true)
	if err != nil {
		return nil, nil, err
	}

	if cfg.migrate {
		_, err = migrate.RunFS(ctx, writeDB, migrations.FS, migrate.Metadata{
			AppVersion: internal.BuildRevision,
			Timestamp:  time.Now(),
		})
		if err != nil {
			return nil, nil, errors.Join(fmt.Errorf("failed to migrate: %w", err), writeDB.Close())
		}
	}

	readDB, err := db.OpenSQLite(cfg.file, false)
	if err != nil {
		return nil, nil, errors.Join(err, writeDB.Close())
	}

	return writeDB, readDB, nil
}

func newEmailService(cfg emailConfig, logger *slog.Logger) (*email.Service, error) {
	names := make([]string, 0, len(card.NotificationKinds))
	for _, k := range card.NotificationKinds {
		names = append(names, string(k))
	}

	renderer, err := view.NewFSRenderer(assets.EmailFS, names...)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var sender email.Sender
	switch cfg.driver {
	case "postmark":
		sender = postmark.NewSender(client, cfg.postmark)
	case "mailgun":
		sender = mailgun.NewSender(client, cfg.mailgun)
	default:
		sender = email.NewLogSender(logger)
	}

	return email.NewService(cfg.from, renderer, sender), nil
}

// connectNATS connects to NATS JetStream when a URL is configured. It
// returns nil without a URL.
func connectNATS(cfg natsConfig, logger *slog.Logger) (*events.JetStream, error) {
	if cfg.url == "" {
		logger.Info("NATS_URL not set, events are not published and slot changes not received")
		return nil, nil
	}

	js, err := events.Connect(cfg.url,
		nats.Name("cardhub"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected from nats", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to nats", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}

	return js, nil
}
