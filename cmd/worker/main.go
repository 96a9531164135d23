package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/pawline/notify-api/internal/channel"
	"github.com/pawline/notify-api/internal/config"
	"github.com/pawline/notify-api/internal/handler/health"
	"github.com/pawline/notify-api/internal/handler/ops"
	"github.com/pawline/notify-api/internal/repository/postgres"
	"github.com/pawline/notify-api/internal/router"
	"github.com/pawline/notify-api/internal/service/broadcast"
	"github.com/pawline/notify-api/internal/service/delivery"
	"github.com/pawline/notify-api/internal/service/dispatch"
	"github.com/pawline/notify-api/internal/service/liveness"
	signalsvc "github.com/pawline/notify-api/internal/service/signal"
	"github.com/pawline/notify-api/internal/service/template"
	"github.com/pawline/notify-api/pkg/logger"
	"github.com/pawline/notify-api/pkg/messaging"
	redisbroker "github.com/pawline/notify-api/pkg/messaging/redis"
	"github.com/pawline/notify-api/pkg/metrics"
	"github.com/pawline/notify-api/pkg/scheduler"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}
	channels, err := config.LoadChannels()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load channel config")
	}

	zlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	log := logger.NewFromZerolog(zlog.Logger)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisbroker.NewRedisBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &zlog.Logger)
		if err != nil {
			log.Fatal(err, "Failed to create Redis broker")
		}
		defer broker.Close()
	}

	// Repositories
	baseRepo := postgres.NewBaseRepository(db)
	messageRepo := postgres.NewMessageRepository(baseRepo)
	hospitalRepo := postgres.NewHospitalRepository(baseRepo)
	emergencyRepo := postgres.NewEmergencyRepository(baseRepo)
	livenessRepo := postgres.NewLivenessRepository(baseRepo)
	signalRepo := postgres.NewSignalAlertRepository(baseRepo)
	broadcastRepo := postgres.NewScheduledBroadcastRepository(baseRepo)
	tokenRepo := postgres.NewPushTokenRepository(baseRepo)

	// Channel adapters
	chatClient := channel.NewChatClient(channel.ChatConfig{
		BaseURL:       channels.ChatBaseURL,
		Token:         channels.ChatToken,
		Timeout:       channels.ChatTimeout,
		RatePerSecond: channels.ChatRate,
		Burst:         channels.ChatBurst,
	}, log)
	emailSender := channel.NewEmailSender(channel.EmailConfig{
		Host:     channels.SMTPHost,
		Port:     channels.SMTPPort,
		Username: channels.SMTPUsername,
		Password: channels.SMTPPassword,
		From:     channels.EmailFrom,
		Timeout:  channels.EmailTimeout,
	}, log)
	pushClient := channel.NewPushClient(channel.PushConfig{
		Endpoint:  channels.PushEndpoint,
		ServerKey: channels.PushServerKey,
		Timeout:   channels.PushTimeout,
	}, log)

	m := metrics.New("notify")

	// Services
	builder := template.NewBuilder(emergencyRepo, hospitalRepo, log)
	deliverySvc := delivery.NewService(messageRepo, hospitalRepo, builder, chatClient, emailSender, broker, m, log, delivery.Config{
		MaxRetries: cfg.Delivery.MaxRetries,
		RetryDelay: cfg.Delivery.RetryDelay,
	})
	broadcastSvc := broadcast.NewService(builder, hospitalRepo, messageRepo, deliverySvc, log)
	livenessSvc := liveness.NewService(hospitalRepo, livenessRepo, deliverySvc, broker, m, log, liveness.Config{
		StalenessThreshold: cfg.Liveness.StalenessThreshold,
	})
	dispatchSvc := dispatch.NewService(broadcastRepo, tokenRepo, pushClient, m, log)
	feedClient := signalsvc.NewFeedClient(cfg.Signal.FeedURL, 0, log)
	signalMonitor := signalsvc.NewMonitor(signalRepo, feedClient, dispatchSvc, broker, m, log, signalsvc.Config{
		SeverityThreshold: cfg.Signal.SeverityThreshold,
	})

	// Periodic tasks: each owns its interval and in-flight guard.
	retrySweep := mustTask("delivery-retry-sweep", cfg.Delivery.SweepInterval, deliverySvc.SweepOnce, log)
	noReplySweep := mustTask("liveness-no-reply-sweep", cfg.Liveness.SweepInterval, livenessSvc.RunNoReplySweepOnce, log)
	signalPoll := mustTask("signal-poll", cfg.Signal.PollInterval, signalMonitor.CheckOnce, log)
	dispatchDrain := mustTask("dispatch-drain", cfg.Dispatch.DrainInterval, dispatchSvc.RunOnce, log)

	// The ping pass runs on a wall-clock cron schedule rather than a ticker;
	// the task wrapper still provides the in-flight guard for on-demand runs.
	pingPass := mustTask("liveness-ping-pass", 24*time.Hour, livenessSvc.RunPingPassOnce, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, task := range []*scheduler.Task{retrySweep, noReplySweep, signalPoll, dispatchDrain} {
		wg.Add(1)
		go func(t *scheduler.Task) {
			defer wg.Done()
			t.Start(ctx)
		}(task)
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Liveness.PingCron, func() { pingPass.RunOnce(ctx) }); err != nil {
		log.Fatal(err, "Invalid ping cron spec", "spec", cfg.Liveness.PingCron)
	}
	c.Start()
	defer c.Stop()

	// Ops surface: health, metrics, and on-demand triggers for every pass.
	opsHandler := ops.NewHandler(broadcastSvc, deliverySvc, livenessSvc, pingPass, noReplySweep, signalPoll, dispatchDrain, log)
	healthHandler := health.NewHandler(db)
	r := router.NewRouter(opsHandler, healthHandler)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := r.Run(addr); err != nil {
			log.Fatal(err, "HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down...")
	cancel()
	wg.Wait()
}

func mustTask(name string, interval time.Duration, fn func(context.Context) error, log *logger.Logger) *scheduler.Task {
	t, err := scheduler.New(name, interval, fn, log)
	if err != nil {
		log.Fatal(err, "Failed to create task", "task", name)
	}
	return t
}
