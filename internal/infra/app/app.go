package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/infra/database"
	kafkainfra "github.com/arklim/social-platform-accounts/internal/infra/kafka"
	"github.com/arklim/social-platform-accounts/internal/infra/logger"
	"github.com/arklim/social-platform-accounts/internal/infra/mail"
	redisinfra "github.com/arklim/social-platform-accounts/internal/infra/redis"
	"github.com/arklim/social-platform-accounts/internal/infra/security"
	"github.com/arklim/social-platform-accounts/internal/infra/telemetry"
	postgresrepo "github.com/arklim/social-platform-accounts/internal/repository/postgres"
	redisrepo "github.com/arklim/social-platform-accounts/internal/repository/redis"
	transportgrpc "github.com/arklim/social-platform-accounts/internal/transport/grpc"
	grpcinterceptors "github.com/arklim/social-platform-accounts/internal/transport/grpc/interceptors"
	"github.com/arklim/social-platform-accounts/internal/transport/http/middleware"
	"github.com/arklim/social-platform-accounts/internal/transport/http/routes"
	"github.com/arklim/social-platform-accounts/internal/usecase"
)

const shutdownBudget = 10 * time.Second

// Application owns every long-lived component of the credential service and
// knows how to spin them up and wind them down in order.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	tracer   *telemetry.TracerProvider
	producer *kafkainfra.Producer
	consumer *kafkainfra.TokenRevocationConsumer
	grpcSrv  *transportgrpc.Server
	grpcAddr string
}

// New wires the service: logger, telemetry, postgres, signing keys, redis,
// repositories, the Kafka publisher and revocation consumer (or their stubs),
// the mailer, the usecases, and finally the HTTP and gRPC surfaces.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metricsProvider, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.Enabled {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	jwtManager := security.NewJWTManager(keyProvider)

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	tokenGenerator, err := security.NewTokenGenerator(keyProvider, cfg.JWT.ActiveKID)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init token generator: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitRetention(cfg),
	})
	versionCache := redisrepo.NewSessionVersionRepository(redisClient.Client(), cfg.Redis.SessionVersionPrefix)
	revocationStore := redisrepo.NewSessionRevocationStore(redisClient.Client(), cfg.Redis.SessionRevokedPrefix)
	denylist := redisrepo.NewJTIDenylistRepository(redisClient.Client(), cfg.Redis.JTIDenylistPrefix)

	var (
		events   port.EventPublisher
		producer *kafkainfra.Producer
		consumer *kafkainfra.TokenRevocationConsumer
	)
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("kafka producer unavailable, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
		} else {
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			consumer, err = kafkainfra.NewTokenRevocationConsumer(cfg.Kafka, denylist, log)
			if err != nil {
				log.Warn("token revocation consumer unavailable", zap.Error(err))
				consumer = nil
			}
		}
	} else {
		events = kafkainfra.NewStubPublisher(log)
	}

	var mailer port.Mailer
	if cfg.SMTP.Enabled {
		mailer, err = mail.NewSMTPMailer(cfg.SMTP, cfg.Mail, log)
		if err != nil {
			closeEarly(pool, redisClient, producer)
			return nil, fmt.Errorf("init mailer: %w", err)
		}
	} else {
		log.Info("smtp disabled, outbound mail is logged only")
		mailer = mail.NewLoggingMailer(log)
	}

	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength:         cfg.Security.PasswordMinLength,
		ComplexityChecker: cfg.Security.PasswordComplexityChecker,
	})

	sessionService := usecase.NewSessionService(repos.Sessions, repos.Tokens, log)
	sessionService.WithEventPublisher(events)
	sessionService.WithRevocationCache(revocationStore, cfg.Redis.SessionRevocationTTL)
	sessionService.WithVersionCache(versionCache, cfg.Redis.SessionVersionTTL)

	authService := usecase.NewAuthService(cfg, repos.Users, repos.Tokens, repos.Sessions, sessionService, jwtManager, tokenGenerator, log)
	authService.WithJTIDenylist(denylist)
	authService.WithRevocationCache(revocationStore)
	authService.WithVersionCache(versionCache)
	authService.WithRateLimiter(rateLimitStore)
	authService.WithEventPublisher(events)

	resetService := usecase.NewPasswordResetService(cfg, repos.Users, repos.Tokens, mailer, policy, log)
	resetService.WithRateLimiter(rateLimitStore)
	resetService.WithEventPublisher(events)
	resetService.WithSessionService(sessionService)
	resetService.WithAuthenticator(authService)
	resetService.WithMetrics(metricsProvider)

	var usernameRecovery *usecase.UsernameRecoveryService
	if cfg.Recovery.UsernameRecoveryEnabled {
		usernameRecovery = usecase.NewUsernameRecoveryService(cfg, repos.Users, mailer, log)
		usernameRecovery.WithRateLimiter(rateLimitStore)
		usernameRecovery.WithEventPublisher(events)
		usernameRecovery.WithMetrics(metricsProvider)
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		closeEarly(pool, redisClient, producer)
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Metrics:     httpMetrics,
		JWTManager:  jwtManager,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:             authService,
			PasswordReset:    resetService,
			UsernameRecovery: usernameRecovery,
			Sessions:         sessionService,
		},
	})

	app := &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		tracer:   tracer,
		producer: producer,
		consumer: consumer,
	}

	if cfg.GRPC.Enabled {
		grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{})
		if err != nil {
			closeEarly(pool, redisClient, producer)
			return nil, fmt.Errorf("init grpc metrics: %w", err)
		}
		var tracing *grpcinterceptors.ServerTracing
		if tracer != nil {
			tracing = grpcinterceptors.NewServerTracing(grpcinterceptors.TracingOptions{
				TracerProvider: tracer.TracerProvider(),
			})
		}
		app.grpcSrv = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Logger:  log,
			Metrics: grpcMetrics,
			Tracing: tracing,
			Checks: []transportgrpc.ReadinessCheck{
				{Name: "postgres", Probe: pool.Ping},
				{Name: "redis", Probe: redisClient.HealthCheck},
			},
		})
		app.grpcAddr = fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	}

	return app, nil
}

// Run serves HTTP and gRPC until ctx is cancelled or a listener fails, then
// shuts everything down: servers first, then the revocation consumer, the
// producer flush, the tracer flush, and finally the connection pools.
func (a *Application) Run(ctx context.Context) error {
	defer func() { _ = a.logger.Sync() }()
	defer a.closeBackends()

	errCh := make(chan error, 3)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("token revocation consumer stopped", zap.Error(err))
				errCh <- fmt.Errorf("run revocation consumer: %w", err)
			}
		}()
	}

	var grpcListener net.Listener
	if a.grpcSrv != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcListener = lis
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))

		go a.grpcSrv.WatchReadiness(runCtx)
		go func() {
			if err := a.grpcSrv.GRPCServer().Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting accounts API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("run http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownBudget)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown http server: %w", err)
	}
	if a.grpcSrv != nil {
		a.grpcSrv.GRPCServer().GracefulStop()
	}
	if grpcListener != nil {
		_ = grpcListener.Close()
	}
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Warn("close revocation consumer", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}

	return runErr
}

func (a *Application) closeBackends() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// closeEarly releases whatever New managed to open before failing.
func closeEarly(pool *pgxpool.Pool, redisClient *redisinfra.Client, producer *kafkainfra.Producer) {
	if pool != nil {
		pool.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if producer != nil {
		_ = producer.Close()
	}
}

// rateLimitRetention sizes the sorted-set TTL to outlive the longest window.
func rateLimitRetention(cfg *config.AppConfig) time.Duration {
	longest := time.Minute
	for _, w := range []time.Duration{
		cfg.RateLimit.ResetEmailWindow,
		cfg.RateLimit.ResetIPWindow,
		cfg.RateLimit.LoginWindow,
	} {
		if w > longest {
			longest = w
		}
	}
	return 2 * longest
}
