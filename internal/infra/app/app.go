package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/port"
	"github.com/valcriss/sovrane/internal/infra/config"
	"github.com/valcriss/sovrane/internal/infra/database"
	kafkainfra "github.com/valcriss/sovrane/internal/infra/kafka"
	"github.com/valcriss/sovrane/internal/infra/logger"
	"github.com/valcriss/sovrane/internal/infra/mailer"
	redisinfra "github.com/valcriss/sovrane/internal/infra/redis"
	"github.com/valcriss/sovrane/internal/infra/security"
	postgresrepo "github.com/valcriss/sovrane/internal/repository/postgres"
	redisrepo "github.com/valcriss/sovrane/internal/repository/redis"
	"github.com/valcriss/sovrane/internal/transport/http/middleware"
	"github.com/valcriss/sovrane/internal/transport/http/routes"
	"github.com/valcriss/sovrane/internal/usecase"
)

// Application wires the service graph and runs the HTTP server.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	kafka  *kafkainfra.Producer
}

// New builds the application from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, err := security.NewFileKeyProvider(cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	cipher, err := newSecretCipher(cfg.MFA.SecretCipherKey)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init mfa cipher: %w", err)
	}

	users := postgresrepo.NewUserRepository(pool)
	refreshTokens := postgresrepo.NewRefreshTokenRepository(pool)
	resetTokens := postgresrepo.NewResetTokenRepository(pool)
	cache := redisrepo.NewCacheRepository(redisClient.Client(), cfg.Redis.KeyPrefix)

	var audit port.AuditPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			audit = kafkainfra.NewStubPublisher(log)
		} else {
			audit = kafkainfra.NewAuditPublisher(producer, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		audit = kafkainfra.NewStubPublisher(log)
	}

	hasher := security.Argon2Hasher{}
	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength:        cfg.Password.MinLength,
		MaxLength:        cfg.Password.MaxLength,
		RequireUppercase: cfg.Password.RequireUppercase,
		RequireLowercase: cfg.Password.RequireLowercase,
		RequireDigit:     cfg.Password.RequireDigit,
		RequireSymbol:    cfg.Password.RequireSymbol,
		MinStrengthScore: cfg.Password.MinStrengthScore,
	})
	totpGenerator := security.NewTOTPGenerator(cfg.MFA.Issuer)
	mail := mailer.NewLoggingMailer(log)

	permissions := usecase.NewPermissionEngine(log)
	ledger := usecase.NewRefreshTokenLedger(cfg, refreshTokens, audit, log)
	issuer := usecase.NewTokenIssuer(cfg, keyProvider, ledger, log)
	resetService := usecase.NewPasswordResetService(cfg, users, resetTokens, ledger, policy, hasher, mail, audit, log)

	localProvider := usecase.NewLocalAuthProvider(users, hasher, issuer, resetService, log)

	providerList := []usecase.AuthProvider{localProvider}
	if external, err := newExternalProvider(cfg, users, log); err != nil {
		log.Warn("external provider disabled", zap.Error(err))
	} else if external != nil {
		providerList = append(providerList, external)
	}
	providers := usecase.NewCompositeAuthProvider(log, providerList...)

	totpService := usecase.NewTOTPService(cfg, users, cache, cipher, totpGenerator, audit, log)
	emailService := usecase.NewEmailOTPService(cfg, cache, mail, audit, log)

	sessionService := usecase.NewSessionService(cfg, users, providers, issuer, ledger, permissions, totpService, emailService, audit, log)
	userService := usecase.NewUserService(users, ledger, permissions, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Namespace: "sovrane"})
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Sessions:  sessionService,
			Users:     userService,
			Providers: providers,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		kafka:  producer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting sovrane API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// newSecretCipher decodes the configured key, accepting raw 32-byte
// strings or base64.
func newSecretCipher(key string) (port.SecretCipher, error) {
	if key == "" {
		return nil, fmt.Errorf("mfa secret cipher key not configured")
	}

	raw := []byte(key)
	if len(raw) != 32 {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("decode cipher key: %w", err)
		}
		raw = decoded
	}

	return security.NewAESCipher(raw)
}

// newExternalProvider builds the federated token adapter when configured.
// Missing configuration is not an error; the adapter is simply absent.
func newExternalProvider(cfg *config.AppConfig, users port.UserRepository, log *zap.Logger) (usecase.AuthProvider, error) {
	if cfg.Provider.Issuer == "" || cfg.Provider.PublicKeyPath == "" {
		return nil, nil
	}

	pemData, err := os.ReadFile(cfg.Provider.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read provider public key: %w", err)
	}

	key, err := security.ParsePublicKeyPEM(pemData)
	if err != nil {
		return nil, fmt.Errorf("parse provider public key: %w", err)
	}

	return usecase.NewExternalTokenProvider(cfg.Provider.Name, cfg.Provider.Issuer, key, users, log), nil
}
