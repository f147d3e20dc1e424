package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env     string `yaml:"app_env"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
	} `yaml:"server"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Session struct {
		Issuer string `yaml:"issuer"`
		// base64(seed ed25519 de 32 bytes). Normalmente viene por env.
		SigningKey string `yaml:"signing_key"`
		// TTL para sesiones de providers sociales (twitter, discord, telegram, worldid).
		TransientTTL string `yaml:"transient_ttl"`
		// TTL para sesiones wallet (firma criptográfica del propio usuario).
		WalletTTL string `yaml:"wallet_ttl"`
	} `yaml:"session"`

	Voucher struct {
		// hex(secp256k1). Normalmente viene por env.
		SignerKey string `yaml:"signer_key"`
		// Dominio EIP-712
		ContractAddress string `yaml:"contract_address"`
		ChainID         int64  `yaml:"chain_id"`
		DeadlineTTL     string `yaml:"deadline_ttl"`
	} `yaml:"voucher"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`

		Auth struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"auth"`

		Claim struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"claim"`
	} `yaml:"rate"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`

	Security struct {
		// base64(32 bytes) para cifrar tokens de provider en reposo
		SecretBoxMasterKey string `yaml:"secretbox_master_key"`
	} `yaml:"security"`

	// ───────── Social Providers ─────────
	Providers struct {
		// TTL del nonce SIWE y del request token de OAuth1
		NonceTTL        time.Duration `yaml:"nonce_ttl"`
		RequestTokenTTL time.Duration `yaml:"request_token_ttl"`
		// TTL del state firmado para el flujo de linking
		LinkStateTTL time.Duration `yaml:"link_state_ttl"`

		Twitter struct {
			Enabled        bool   `yaml:"enabled"`
			ConsumerKey    string `yaml:"consumer_key"`
			ConsumerSecret string `yaml:"consumer_secret"`
			CallbackURL    string `yaml:"callback_url"`
		} `yaml:"twitter"`

		Discord struct {
			Enabled      bool     `yaml:"enabled"`
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			RedirectURL  string   `yaml:"redirect_url"`
			Scopes       []string `yaml:"scopes"`
		} `yaml:"discord"`

		Telegram struct {
			Enabled  bool   `yaml:"enabled"`
			BotToken string `yaml:"bot_token"`
			// antigüedad máxima aceptada para auth_date
			MaxAuthAge time.Duration `yaml:"max_auth_age"`
		} `yaml:"telegram"`

		Wallet struct {
			Enabled bool   `yaml:"enabled"`
			Domain  string `yaml:"domain"` // dominio esperado en el mensaje SIWE
		} `yaml:"wallet"`

		WorldID struct {
			Enabled   bool   `yaml:"enabled"`
			AppID     string `yaml:"app_id"`
			Action    string `yaml:"action"`
			VerifyURL string `yaml:"verify_url"`
		} `yaml:"worldid"`
	} `yaml:"providers"`

	// ───────── Rewards ─────────
	Rewards struct {
		FriendAccept int64 `yaml:"friend_accept"`
		DailyLogin   int64 `yaml:"daily_login"`
		StreakBonus  int64 `yaml:"streak_bonus"`
		// días consecutivos necesarios para el bonus
		StreakLength int `yaml:"streak_length"`
	} `yaml:"rewards"`
}

func Load(path string) (*Config, error) {
	var c Config

	// El YAML es opcional: con env-only también se puede arrancar.
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "20s"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Session.Issuer == "" {
		c.Session.Issuer = "socialid"
	}
	if c.Session.TransientTTL == "" {
		c.Session.TransientTTL = "24h"
	}
	if c.Session.WalletTTL == "" {
		c.Session.WalletTTL = "168h" // 7d
	}
	if c.Voucher.DeadlineTTL == "" {
		c.Voucher.DeadlineTTL = "1h"
	}
	if c.Voucher.ChainID == 0 {
		c.Voucher.ChainID = 1
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Rate.Auth.Limit == 0 {
		c.Rate.Auth.Limit = 10
	}
	if c.Rate.Auth.Window == "" {
		c.Rate.Auth.Window = "1m"
	}
	if c.Rate.Claim.Limit == 0 {
		c.Rate.Claim.Limit = 5
	}
	if c.Rate.Claim.Window == "" {
		c.Rate.Claim.Window = "1m"
	}
	if c.Providers.NonceTTL == 0 {
		c.Providers.NonceTTL = 5 * time.Minute
	}
	if c.Providers.RequestTokenTTL == 0 {
		c.Providers.RequestTokenTTL = 10 * time.Minute
	}
	if c.Providers.LinkStateTTL == 0 {
		c.Providers.LinkStateTTL = time.Hour
	}
	if c.Providers.Telegram.MaxAuthAge == 0 {
		c.Providers.Telegram.MaxAuthAge = 24 * time.Hour
	}
	if len(c.Providers.Discord.Scopes) == 0 {
		c.Providers.Discord.Scopes = []string{"identify", "email"}
	}
	if c.Providers.WorldID.VerifyURL == "" && c.Providers.WorldID.AppID != "" {
		c.Providers.WorldID.VerifyURL = "https://developer.worldcoin.org/api/v2/verify/" + c.Providers.WorldID.AppID
	}
	if c.Rewards.FriendAccept == 0 {
		c.Rewards.FriendAccept = 50
	}
	if c.Rewards.DailyLogin == 0 {
		c.Rewards.DailyLogin = 10
	}
	if c.Rewards.StreakBonus == 0 {
		c.Rewards.StreakBonus = 100
	}
	if c.Rewards.StreakLength == 0 {
		c.Rewards.StreakLength = 7
	}

	// validate string durations
	for _, s := range []string{
		c.Server.ReadTimeout,
		c.Server.WriteTimeout,
		c.Cache.Memory.DefaultTTL,
		c.Session.TransientTTL,
		c.Session.WalletTTL,
		c.Voucher.DeadlineTTL,
		c.Rate.Window,
		c.Rate.Auth.Window,
		c.Rate.Claim.Window,
	} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return nil, err
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return nil, err
		}
	}

	// Overrides por env
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvInt64(key string) (int64, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("APP_VERSION"); ok {
		c.App.Version = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	} else if v, ok := getEnvStr("DATABASE_URL"); ok {
		// alias habitual en PaaS
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// SESSION
	if v, ok := getEnvStr("SESSION_ISSUER"); ok {
		c.Session.Issuer = v
	}
	if v, ok := getEnvStr("SESSION_SIGNING_KEY"); ok {
		c.Session.SigningKey = v
	}
	if v, ok := getEnvStr("SESSION_TRANSIENT_TTL"); ok {
		c.Session.TransientTTL = v
	}
	if v, ok := getEnvStr("SESSION_WALLET_TTL"); ok {
		c.Session.WalletTTL = v
	}

	// VOUCHER
	if v, ok := getEnvStr("VOUCHER_SIGNER_KEY"); ok {
		c.Voucher.SignerKey = v
	}
	if v, ok := getEnvStr("VOUCHER_CONTRACT_ADDRESS"); ok {
		c.Voucher.ContractAddress = v
	}
	if v, ok := getEnvInt64("VOUCHER_CHAIN_ID"); ok {
		c.Voucher.ChainID = v
	}
	if v, ok := getEnvStr("VOUCHER_DEADLINE_TTL"); ok {
		c.Voucher.DeadlineTTL = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvInt("RATE_AUTH_LIMIT"); ok {
		c.Rate.Auth.Limit = v
	}
	if v, ok := getEnvStr("RATE_AUTH_WINDOW"); ok {
		c.Rate.Auth.Window = v
	}
	if v, ok := getEnvInt("RATE_CLAIM_LIMIT"); ok {
		c.Rate.Claim.Limit = v
	}
	if v, ok := getEnvStr("RATE_CLAIM_WINDOW"); ok {
		c.Rate.Claim.Window = v
	}

	// FLAGS
	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Flags.Migrate = v
	}

	// SECURITY
	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}

	// ───── Providers ─────
	if d, ok := getEnvDur("PROVIDERS_NONCE_TTL"); ok {
		c.Providers.NonceTTL = d
	}
	if d, ok := getEnvDur("PROVIDERS_REQUEST_TOKEN_TTL"); ok {
		c.Providers.RequestTokenTTL = d
	}
	if d, ok := getEnvDur("PROVIDERS_LINK_STATE_TTL"); ok {
		c.Providers.LinkStateTTL = d
	}

	// TWITTER
	if v, ok := getEnvBool("TWITTER_ENABLED"); ok {
		c.Providers.Twitter.Enabled = v
	}
	if v, ok := getEnvStr("TWITTER_CONSUMER_KEY"); ok {
		c.Providers.Twitter.ConsumerKey = v
	}
	if v, ok := getEnvStr("TWITTER_CONSUMER_SECRET"); ok {
		c.Providers.Twitter.ConsumerSecret = v
	}
	if v, ok := getEnvStr("TWITTER_CALLBACK_URL"); ok {
		c.Providers.Twitter.CallbackURL = v
	}

	// DISCORD
	if v, ok := getEnvBool("DISCORD_ENABLED"); ok {
		c.Providers.Discord.Enabled = v
	}
	if v, ok := getEnvStr("DISCORD_CLIENT_ID"); ok {
		c.Providers.Discord.ClientID = v
	}
	if v, ok := getEnvStr("DISCORD_CLIENT_SECRET"); ok {
		c.Providers.Discord.ClientSecret = v
	}
	if v, ok := getEnvStr("DISCORD_REDIRECT_URL"); ok {
		c.Providers.Discord.RedirectURL = v
	}
	if v, ok := getEnvCSV("DISCORD_SCOPES"); ok && len(v) > 0 {
		c.Providers.Discord.Scopes = v
	}

	// TELEGRAM
	if v, ok := getEnvBool("TELEGRAM_ENABLED"); ok {
		c.Providers.Telegram.Enabled = v
	}
	if v, ok := getEnvStr("TELEGRAM_BOT_TOKEN"); ok {
		c.Providers.Telegram.BotToken = v
	}
	if d, ok := getEnvDur("TELEGRAM_MAX_AUTH_AGE"); ok {
		c.Providers.Telegram.MaxAuthAge = d
	}

	// WALLET
	if v, ok := getEnvBool("WALLET_ENABLED"); ok {
		c.Providers.Wallet.Enabled = v
	}
	if v, ok := getEnvStr("WALLET_DOMAIN"); ok {
		c.Providers.Wallet.Domain = v
	}

	// WORLD ID
	if v, ok := getEnvBool("WORLDID_ENABLED"); ok {
		c.Providers.WorldID.Enabled = v
	}
	if v, ok := getEnvStr("WORLDID_APP_ID"); ok {
		c.Providers.WorldID.AppID = v
	}
	if v, ok := getEnvStr("WORLDID_ACTION"); ok {
		c.Providers.WorldID.Action = v
	}
	if v, ok := getEnvStr("WORLDID_VERIFY_URL"); ok {
		c.Providers.WorldID.VerifyURL = v
	}

	// ───── Rewards ─────
	if v, ok := getEnvInt64("REWARDS_FRIEND_ACCEPT"); ok {
		c.Rewards.FriendAccept = v
	}
	if v, ok := getEnvInt64("REWARDS_DAILY_LOGIN"); ok {
		c.Rewards.DailyLogin = v
	}
	if v, ok := getEnvInt64("REWARDS_STREAK_BONUS"); ok {
		c.Rewards.StreakBonus = v
	}
	if v, ok := getEnvInt("REWARDS_STREAK_LENGTH"); ok {
		c.Rewards.StreakLength = v
	}
}

// Validate verifica la configuración crítica.
// Las claves de firma son obligatorias: sin ellas el servicio no puede
// emitir sesiones ni vouchers, y preferimos fallar al arrancar.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Session.SigningKey) == "" {
		return errors.New("config: SESSION_SIGNING_KEY is required")
	}
	if strings.TrimSpace(c.Voucher.SignerKey) == "" {
		return errors.New("config: VOUCHER_SIGNER_KEY is required")
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		return errors.New("config: STORAGE_DSN (or DATABASE_URL) is required")
	}
	return nil
}

// SessionTransientTTL retorna el TTL parseado para sesiones sociales.
func (c *Config) SessionTransientTTL() time.Duration {
	d, _ := time.ParseDuration(c.Session.TransientTTL)
	return d
}

// SessionWalletTTL retorna el TTL parseado para sesiones wallet.
func (c *Config) SessionWalletTTL() time.Duration {
	d, _ := time.ParseDuration(c.Session.WalletTTL)
	return d
}

// VoucherDeadlineTTL retorna el TTL parseado para el deadline del voucher.
func (c *Config) VoucherDeadlineTTL() time.Duration {
	d, _ := time.ParseDuration(c.Voucher.DeadlineTTL)
	return d
}
