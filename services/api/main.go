package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/audit"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/config"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/events"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/mailer"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/realtime"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store/memstore"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store/mongostore"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to open store: %v", err)
	}

	d := deps{Config: cfg, Store: st}

	if cfg.Redis.Host != "" {
		kv, err := utils.NewRedisKV(ctx, cfg.Redis.Addr(), cfg.Redis.Password)
		if err != nil {
			logrus.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer kv.Close()
		d.KV = kv
	} else {
		logrus.Warn("REDIS_HOST not set, token blacklist and 2FA challenges are kept in memory")
	}

	var outbox events.Outbox
	if cfg.Database.Enabled() {
		db, err := config.ConnectDatabase(cfg.Database, &models.AuditLog{}, &models.FailedEvent{})
		if err != nil {
			logrus.Fatalf("Failed to connect to Postgres: %v", err)
		}
		d.Audit = audit.NewGormRecorder(db)
		outbox = events.NewGormOutbox(db)
	}

	hub := realtime.NewHub(realtime.DefaultClientBuffer)
	go hub.Run(ctx)
	d.Hub = hub

	var relay *events.KafkaRelay
	if cfg.Kafka.Broker != "" {
		// every instance consumes the whole stream so its own sockets see all events
		groupID := cfg.Kafka.GroupID + "-" + uuid.NewString()
		relay = events.NewKafkaRelay(
			cfg.Kafka.EventsTopic,
			events.NewKafkaWriter(cfg.Kafka.Broker),
			events.NewKafkaReader(cfg.Kafka.Broker, cfg.Kafka.EventsTopic, groupID),
			hub, outbox, 4,
		)
		go relay.Consume(ctx)
		d.Publisher = relay

		if outbox != nil {
			d.Retry = events.NewRetryWorker(outbox, relay.Write)
			go d.Retry.Run(ctx)
		}
	}

	m, err := mailer.New(cfg.Email)
	if err != nil {
		logrus.Fatalf("Failed to configure email: %v", err)
	}
	d.Mailer = m

	a := newApp(d)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("Helpdesk API starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server shutdown")
	}
	if relay != nil {
		if err := relay.Close(); err != nil {
			logrus.WithError(err).Warn("Kafka relay shutdown")
		}
	}
	a.mail.Wait()
	if err := st.Close(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Store shutdown")
	}
}

// openStore picks the persistence backend named by STORE_DRIVER
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg.StoreDriver == "memory" {
		logrus.Warn("STORE_DRIVER=memory, data is lost on restart")
		return memstore.New(), nil
	}
	db, err := config.ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		return nil, err
	}
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}
	return mongostore.New(db), nil
}
