package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store drivers.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"zart-quizzer"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:5000"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	FrontendURL             string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	Store       Store
	Mongo       Mongo
	Postgres    Postgres
	Redis       Redis
	Security    Security
	OAuth       OAuth
	AI          AI
	SMTP        SMTP
	CORS        CORS
	RateLimit   RateLimit
	Trending    Trending
	Leaderboard Leaderboard
}

// IsProduction reports whether the app runs with production settings.
func (a *App) IsProduction() bool {
	return a.Env == "production"
}

// Store selects the document store backend.
type Store struct {
	Driver string `env:"STORE_DRIVER" envDefault:"mongo"`
}

// Mongo holds MongoDB connection info.
type Mongo struct {
	URI            string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database       string        `env:"MONGO_DATABASE" envDefault:"zart_quizzer"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"10s"`
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	URL         string `env:"DATABASE_URL"`
	Host        string `env:"PG_HOST" envDefault:"localhost"`
	Port        int    `env:"PG_PORT" envDefault:"5432"`
	User        string `env:"PG_USER" envDefault:"postgres"`
	Password    string `env:"PG_PASSWORD"`
	Database    string `env:"PG_DATABASE" envDefault:"zart_quizzer"`
	SSLMode     string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns    int32  `env:"PG_MAX_CONNS" envDefault:"10"`
	AutoMigrate bool   `env:"PG_AUTO_MIGRATE" envDefault:"false"`
}

// DSN returns DATABASE_URL when set, otherwise a URL built from the PG_* fields.
func (p Postgres) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

// Redis holds cache, session and pub/sub configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET,notEmpty"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET,notEmpty"`
	AccessTokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL  time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	SessionSecret    string        `env:"SESSION_SECRET,notEmpty"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"12"`
	ResetTokenTTL    time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
}

// OAuthProvider holds one provider's client credentials.
type OAuthProvider struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether both client id and secret are set.
func (p OAuthProvider) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// OAuth holds OAuth provider configuration.
type OAuth struct {
	GoogleClientID       string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL    string        `env:"GOOGLE_REDIRECT_URL"`
	GitHubClientID       string        `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret   string        `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL    string        `env:"GITHUB_REDIRECT_URL"`
	FacebookClientID     string        `env:"FACEBOOK_APP_ID"`
	FacebookClientSecret string        `env:"FACEBOOK_APP_SECRET"`
	FacebookRedirectURL  string        `env:"FACEBOOK_REDIRECT_URL"`
	StateTTL             time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
}

// Google returns the Google client settings.
func (o OAuth) Google() OAuthProvider {
	return OAuthProvider{o.GoogleClientID, o.GoogleClientSecret, o.GoogleRedirectURL}
}

// GitHub returns the GitHub client settings.
func (o OAuth) GitHub() OAuthProvider {
	return OAuthProvider{o.GitHubClientID, o.GitHubClientSecret, o.GitHubRedirectURL}
}

// Facebook returns the Facebook client settings.
func (o OAuth) Facebook() OAuthProvider {
	return OAuthProvider{o.FacebookClientID, o.FacebookClientSecret, o.FacebookRedirectURL}
}

// AI configures question authoring.
type AI struct {
	GeneratorURL string        `env:"AI_GENERATOR_URL"`
	GeneratorKey string        `env:"AI_GENERATOR_API_KEY"`
	GeminiAPIKey string        `env:"GEMINI_API_KEY"`
	GeminiModel  string        `env:"GEMINI_MODEL" envDefault:"models/gemini-1.5-flash"`
	HTTPTimeout  time.Duration `env:"AI_HTTP_TIMEOUT" envDefault:"30s"`
	MaxRetries   int           `env:"AI_MAX_RETRIES" envDefault:"2"`
}

// SMTP holds email server configuration.
type SMTP struct {
	Host      string `env:"SMTP_HOST"`
	Port      int    `env:"SMTP_PORT" envDefault:"587"`
	Username  string `env:"SMTP_USERNAME"`
	Password  string `env:"SMTP_PASSWORD"`
	FromEmail string `env:"SMTP_FROM_EMAIL" envDefault:"no-reply@zart-quizzer.local"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization,X-Refresh-Token,X-Request-Id"`
	ExposedHeaders   []string `env:"CORS_EXPOSED_HEADERS" envSeparator:"," envDefault:"X-Access-Token,X-Request-Id"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// RateLimit governs the fixed-window limiter on auth endpoints.
type RateLimit struct {
	AuthRequests int           `env:"RATE_LIMIT_AUTH_REQUESTS" envDefault:"20"`
	AuthWindow   time.Duration `env:"RATE_LIMIT_AUTH_WINDOW" envDefault:"1m"`
}

// Trending controls the trending cache refresh.
type Trending struct {
	Window          time.Duration `env:"TRENDING_WINDOW" envDefault:"168h"`
	RefreshInterval time.Duration `env:"TRENDING_REFRESH_INTERVAL" envDefault:"10m"`
	CacheTTL        time.Duration `env:"TRENDING_CACHE_TTL" envDefault:"30m"`
	Size            int           `env:"TRENDING_SIZE" envDefault:"20"`
}

// Leaderboard governs broadcast behavior.
type Leaderboard struct {
	BroadcastTopN int `env:"LEADERBOARD_BROADCAST_TOP" envDefault:"10"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse fills any env-tagged struct, such as a single section for a tool that
// does not need the full application config.
func Parse(dst any) error {
	if err := env.ParseWithOptions(dst, env.Options{RequiredIfNoDef: false}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (a *App) validate() error {
	switch a.Store.Driver {
	case DriverMongo, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", a.Store.Driver)
	}
	if a.Security.JWTAccessSecret == a.Security.JWTRefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	return nil
}
