package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/socialid/internal/cache"
	"github.com/dropDatabas3/socialid/internal/config"
	authctrl "github.com/dropDatabas3/socialid/internal/http/controllers/auth"
	friendsctrl "github.com/dropDatabas3/socialid/internal/http/controllers/friends"
	healthctrl "github.com/dropDatabas3/socialid/internal/http/controllers/health"
	messagesctrl "github.com/dropDatabas3/socialid/internal/http/controllers/messages"
	rewardsctrl "github.com/dropDatabas3/socialid/internal/http/controllers/rewards"
	mw "github.com/dropDatabas3/socialid/internal/http/middlewares"
	"github.com/dropDatabas3/socialid/internal/http/router"
	friendssvc "github.com/dropDatabas3/socialid/internal/http/services/friends"
	healthsvc "github.com/dropDatabas3/socialid/internal/http/services/health"
	messagessvc "github.com/dropDatabas3/socialid/internal/http/services/messages"
	"github.com/dropDatabas3/socialid/internal/http/services/reconcile"
	rewardssvc "github.com/dropDatabas3/socialid/internal/http/services/rewards"
	"github.com/dropDatabas3/socialid/internal/http/services/streak"
	jwtx "github.com/dropDatabas3/socialid/internal/jwt"
	"github.com/dropDatabas3/socialid/internal/observability/logger"
	"github.com/dropDatabas3/socialid/internal/providers"
	"github.com/dropDatabas3/socialid/internal/providers/discord"
	"github.com/dropDatabas3/socialid/internal/providers/telegram"
	"github.com/dropDatabas3/socialid/internal/providers/twitter"
	"github.com/dropDatabas3/socialid/internal/providers/wallet"
	"github.com/dropDatabas3/socialid/internal/providers/worldid"
	"github.com/dropDatabas3/socialid/internal/rate"
	"github.com/dropDatabas3/socialid/internal/reward/voucher"
	"github.com/dropDatabas3/socialid/internal/security/secretbox"
	pgdriver "github.com/dropDatabas3/socialid/internal/store/pg"
	pgmigrations "github.com/dropDatabas3/socialid/migrations/postgres"
	"go.uber.org/zap"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
	)
	flag.Parse()

	if fileExists(*flagEnvFile) {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			log.Printf("dotenv: cargado %s", *flagEnvFile)
		}
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" && fileExists("configs/config.yaml") {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("LOG_LEVEL"),
		ServiceName: "socialid",
		Version:     cfg.App.Version,
	})
	defer func() { _ = logger.Sync() }()
	zl := logger.L()

	ctx := context.Background()

	// ───────── Storage ─────────
	repo, err := pgdriver.New(ctx, cfg.Storage.DSN, pgdriver.Config{
		MaxConns:        cfg.Storage.Postgres.MaxConns,
		MinConns:        cfg.Storage.Postgres.MinConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		zl.Fatal("pg open", zap.Error(err))
	}
	defer repo.Close()

	if cfg.Flags.Migrate {
		if err := repo.RunMigrations(ctx, pgmigrations.FS, pgmigrations.Dir); err != nil {
			zl.Fatal("migrations", zap.Error(err))
		}
	}

	// ───────── Cache ─────────
	memTTL, _ := time.ParseDuration(cfg.Cache.Memory.DefaultTTL)
	cc, err := cache.New(cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   os.Getenv("REDIS_PASSWORD"),
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: memTTL,
	})
	if err != nil {
		zl.Fatal("cache", zap.Error(err))
	}
	defer cc.Close()

	// ───────── Firmas ─────────
	issuer, err := jwtx.NewIssuer(cfg.Session.Issuer, cfg.Session.SigningKey)
	if err != nil {
		zl.Fatal("session issuer", zap.Error(err))
	}

	signer, err := voucher.New(cfg.Voucher.SignerKey, cfg.Voucher.ContractAddress,
		cfg.Voucher.ChainID, cfg.VoucherDeadlineTTL())
	if err != nil {
		zl.Fatal("voucher signer", zap.Error(err))
	}
	zl.Info("voucher signer ready", zap.String("address", signer.Address()))

	// Cifrado en reposo de access tokens de providers. Opcional: sin
	// clave, los tokens no se persisten.
	var box *secretbox.Box
	if strings.TrimSpace(cfg.Security.SecretBoxMasterKey) != "" {
		box, err = secretbox.New(cfg.Security.SecretBoxMasterKey)
		if err != nil {
			zl.Fatal("secretbox", zap.Error(err))
		}
	} else {
		zl.Warn("SECRETBOX_MASTER_KEY no configurada: los access tokens de providers no se guardarán")
	}

	// ───────── Providers ─────────
	var adapters []providers.Adapter
	var twitterAdapter *twitter.Adapter
	var discordAdapter *discord.Adapter
	var walletAdapter *wallet.Adapter

	if p := cfg.Providers.Twitter; p.Enabled {
		twitterAdapter = twitter.New(p.ConsumerKey, p.ConsumerSecret, p.CallbackURL,
			cc, cfg.Providers.RequestTokenTTL)
		adapters = append(adapters, twitterAdapter)
	}
	if p := cfg.Providers.Discord; p.Enabled {
		discordAdapter = discord.New(p.ClientID, p.ClientSecret, p.RedirectURL, p.Scopes)
		adapters = append(adapters, discordAdapter)
	}
	if p := cfg.Providers.Telegram; p.Enabled {
		adapters = append(adapters, telegram.New(p.BotToken, p.MaxAuthAge))
	}
	if p := cfg.Providers.Wallet; p.Enabled {
		walletAdapter = wallet.New(p.Domain, cc, cfg.Providers.NonceTTL)
		adapters = append(adapters, walletAdapter)
	}
	if p := cfg.Providers.WorldID; p.Enabled {
		adapters = append(adapters, worldid.New(p.AppID, p.Action, p.VerifyURL))
	}
	registry := providers.NewRegistry(adapters...)
	zl.Info("providers enabled", zap.Strings("providers", registry.Names()))

	// ───────── Services ─────────
	streakSvc := streak.New(repo, cfg.Rewards.DailyLogin, cfg.Rewards.StreakBonus, cfg.Rewards.StreakLength)

	reconcileSvc := &reconcile.Service{
		Repo:         repo,
		Issuer:       issuer,
		Cache:        cc,
		Box:          box,
		Streak:       streakSvc,
		TransientTTL: cfg.SessionTransientTTL(),
		WalletTTL:    cfg.SessionWalletTTL(),
		LinkStateTTL: cfg.Providers.LinkStateTTL,
	}
	friendsSvc := &friendssvc.Service{Repo: repo, AcceptReward: cfg.Rewards.FriendAccept}
	messagesSvc := &messagessvc.Service{Repo: repo}
	rewardsSvc := &rewardssvc.Service{Repo: repo, Signer: signer}
	healthSvc := &healthsvc.Service{Repo: repo, Cache: cc, Version: cfg.App.Version, Env: cfg.App.Env}

	// ───────── Rate limiting ─────────
	// Los limiters requieren Redis; con cache memory el servicio corre
	// sin límites (dev).
	var globalLimiter, authLimiter, claimLimiter rate.Limiter
	if cfg.Rate.Enabled && strings.EqualFold(cfg.Cache.Kind, "redis") {
		rc := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       cfg.Cache.Redis.DB,
		})
		prefix := cfg.Cache.Redis.Prefix + "rl:"
		if win, err := time.ParseDuration(cfg.Rate.Window); err == nil {
			globalLimiter = rate.NewRedisLimiter(rc, prefix, cfg.Rate.MaxRequests, win)
		}
		if win, err := time.ParseDuration(cfg.Rate.Auth.Window); err == nil {
			authLimiter = rate.NewRedisLimiter(rc, prefix+"auth:", cfg.Rate.Auth.Limit, win)
		}
		if win, err := time.ParseDuration(cfg.Rate.Claim.Window); err == nil {
			claimLimiter = rate.NewRedisLimiter(rc, prefix+"claim:", cfg.Rate.Claim.Limit, win)
		}
	}

	metricsHandler, err := mw.RegisterMetrics(nil)
	if err != nil {
		zl.Fatal("metrics", zap.Error(err))
	}

	// ───────── Controllers / Router ─────────
	handler := router.New(router.Deps{
		Auth: &authctrl.Controller{
			Registry:     registry,
			Reconcile:    reconcileSvc,
			Repo:         repo,
			Twitter:      twitterAdapter,
			Discord:      discordAdapter,
			Wallet:       walletAdapter,
			NonceTTL:     cfg.Providers.NonceTTL,
			LinkStateTTL: cfg.Providers.LinkStateTTL,
		},
		Friends:  &friendsctrl.Controller{Service: friendsSvc, Repo: repo},
		Messages: &messagesctrl.Controller{Service: messagesSvc},
		Rewards:  &rewardsctrl.Controller{Service: rewardsSvc, Streak: streakSvc, Repo: repo},
		Health:   &healthctrl.Controller{Service: healthSvc},

		Issuer:         issuer,
		GlobalLimiter:  globalLimiter,
		AuthLimiter:    authLimiter,
		ClaimLimiter:   claimLimiter,
		MetricsHandler: metricsHandler,
		CORSOrigins:    cfg.Server.CORSAllowedOrigins,
	})

	readTimeout, _ := time.ParseDuration(cfg.Server.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(cfg.Server.WriteTimeout)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		zl.Info("service up", zap.String("addr", cfg.Server.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}
