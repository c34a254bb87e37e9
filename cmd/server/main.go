package main

import (
	"context"
	"database/sql"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	account "github.com/iblameyuvraj/carpartsdetectionsystem"
	"github.com/iblameyuvraj/carpartsdetectionsystem/provider/local"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Config is the flat runtime configuration, flags with env fallbacks.
type Config struct {
	Addr       string
	DSN        string
	SigningKey string
	Issuer     string
	Audience   string
	Debug      bool
}

func (c Config) GetSigningKey() string        { return c.SigningKey }
func (c Config) GetSigningMethod() string     { return "HS256" }
func (c Config) GetContextKey() string        { return "session" }
func (c Config) GetTokenExpiration() int      { return account.DefaultTokenExpiration }
func (c Config) GetTokenLookup() string       { return "cookie:session,header:Authorization" }
func (c Config) GetAuthScheme() string        { return "Bearer" }
func (c Config) GetIssuer() string            { return c.Issuer }
func (c Config) GetAudience() []string        { return []string{c.Audience} }
func (c Config) GetLoginRoute() string        { return "/log-in" }
func (c Config) GetVerificationRoute() string { return "/verify-email" }
func (c Config) GetLandingRoute() string      { return "/dashboard" }
func (c Config) GetRejectedRouteKey() string  { return "rejected_route" }
func (c Config) GetRejectedRouteDefault() string {
	return c.GetLandingRoute()
}

var _ account.Config = (*Config)(nil)

// PersistenceConfig adapts the flat config to the persistence client.
type PersistenceConfig struct {
	DSN   string
	Debug bool
}

func (p PersistenceConfig) GetDebug() bool    { return p.Debug }
func (p PersistenceConfig) GetDriver() string { return sqliteshim.ShimName }
func (p PersistenceConfig) GetServer() string { return "" }
func (p PersistenceConfig) GetDatabase() string {
	return p.DSN
}
func (p PersistenceConfig) GetDSN() string            { return p.DSN }
func (p PersistenceConfig) GetOtelIdentifier() string { return "" }
func (p PersistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func main() {
	cfg := loadConfig()

	ctx := context.Background()

	db, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		log.Fatal(err)
	}

	persistence.RegisterModel((*local.User)(nil))
	persistence.RegisterModel((*account.VerificationRecord)(nil))

	client, err := persistence.New(PersistenceConfig{DSN: cfg.DSN, Debug: cfg.Debug}, db, sqlitedialect.New())
	if err != nil {
		log.Fatal(err)
	}

	migrationsFS, err := fs.Sub(account.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		log.Fatal(err)
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	bunDB := client.DB()

	users := local.NewUsersRepository(bunDB)
	mailer := &local.LogMailer{Logger: appLogger{}}
	provider := local.New(users, mailer,
		local.WithLogger(appLogger{}),
		local.WithVerifyBase(cfg.GetVerificationRoute()),
	)

	records := account.NewVerificationRecords(bunDB)

	accountClient := account.NewClient(provider, records,
		account.WithClientLogger(appLogger{}),
		account.WithRedirectTargets(cfg.GetLandingRoute(), cfg.GetVerificationRoute()),
	)

	tokens := account.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		appLogger{},
	)

	session, err := account.NewHTTPSession(accountClient, tokens, cfg)
	if err != nil {
		log.Fatal(err)
	}

	engine := django.New("./views", ".html")

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	srv.Router().Use(mflash.New(mflash.ConfigDefault))

	opts := []account.AccountControllerOption{
		account.WithControllerClient(accountClient),
		account.WithControllerSession(session),
	}

	account.RegisterAccountRoutes(srv.Router(), opts...)
	account.RegisterProtectedRoutes(srv.Router(), cfg, opts...)

	go func() {
		if err := srv.Serve(cfg.Addr); err != nil {
			log.Fatal(err)
		}
	}()

	waitExitSignal()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func loadConfig() Config {
	cfg := Config{}

	flag.StringVar(&cfg.Addr, "addr", envOr("ADDR", ":8080"), "listen address")
	flag.StringVar(&cfg.DSN, "dsn", envOr("DSN", "file:app.db?cache=shared"), "database DSN")
	flag.StringVar(&cfg.SigningKey, "signing-key", envOr("SIGNING_KEY", ""), "session token signing key")
	flag.StringVar(&cfg.Issuer, "issuer", envOr("TOKEN_ISSUER", "carparts"), "session token issuer")
	flag.StringVar(&cfg.Audience, "audience", envOr("TOKEN_AUDIENCE", "carparts-web"), "session token audience")
	flag.BoolVar(&cfg.Debug, "debug", os.Getenv("DEBUG") != "", "enable debug output")
	flag.Parse()

	if cfg.SigningKey == "" {
		log.Fatal("a signing key is required, set SIGNING_KEY or -signing-key")
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func waitExitSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
}

type appLogger struct{}

func (appLogger) Debug(format string, args ...any) { log.Printf("[DBG] "+format, args...) }
func (appLogger) Info(format string, args ...any)  { log.Printf("[INF] "+format, args...) }
func (appLogger) Warn(format string, args ...any)  { log.Printf("[WRN] "+format, args...) }
func (appLogger) Error(format string, args ...any) { log.Printf("[ERR] "+format, args...) }
