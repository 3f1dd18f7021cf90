package main

import (
	"io"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/harryzcy/pypiserver/internal/auth"
	"github.com/harryzcy/pypiserver/internal/config"
	"github.com/harryzcy/pypiserver/internal/messaging"
	"github.com/harryzcy/pypiserver/internal/metrics"
	"github.com/harryzcy/pypiserver/internal/server"
	"github.com/harryzcy/pypiserver/internal/storage"
)

var (
	configFile string

	host            string
	port            int
	roots           []string
	backendArg      string
	disableFallback bool
	fallbackURL     string
	cacheControl    int
	welcomeFile     string
	healthEndpoint  string
	hashAlgo        string
	passwordFile    string
	authenticate    []string
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "pypiserver",
	Short: "Minimal PyPI-compatible package index server",
	Long: `pypiserver serves a directory of Python package artifacts through
the simple index protocol, with upload, removal, JSON metadata and
legacy XML-RPC search endpoints.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "configuration file path")
	flags.StringVar(&host, "host", "", "listen address")
	flags.IntVarP(&port, "port", "p", 0, "listen port")
	flags.StringArrayVar(&roots, "root", nil, "package root directory (repeatable; first wins for writes)")
	flags.StringVar(&backendArg, "backend", "", "storage backend: simple-dir or cached-dir")
	flags.BoolVar(&disableFallback, "disable-fallback", false, "return 404 for unknown projects instead of redirecting upstream")
	flags.StringVar(&fallbackURL, "fallback-url", "", "base URL of the upstream index")
	flags.IntVar(&cacheControl, "cache-control", 0, "Cache-Control max-age for package downloads, in seconds")
	flags.StringVar(&welcomeFile, "welcome-file", "", "path to the landing page template")
	flags.StringVar(&healthEndpoint, "health-endpoint", "", "path of the health probe")
	flags.StringVar(&hashAlgo, "hash-algo", "", "digest algorithm: md5, sha1, sha256 or sha512")
	flags.StringVarP(&passwordFile, "password-file", "P", "", `htpasswd file; "." disables password checking`)
	flags.StringSliceVarP(&authenticate, "auth", "a", nil, "operations requiring authentication: update, download, list")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug request logging")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyFlagOverrides(cmd, cfg)
	if len(cfg.Roots) == 0 && len(args) > 0 {
		cfg.Roots = args
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := setupLogging(cfg); err != nil {
		return err
	}

	backend, err := storage.NewBackend(cfg.Backend, cfg.Roots, cfg.HashAlgo)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(cfg.Auth.PasswordFile, cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	var publisher messaging.Publisher = &messaging.NoopPublisher{}
	if cfg.Messaging.RabbitMQ.Enabled {
		pub, err := messaging.NewRabbitMQPublisher(
			cfg.Messaging.RabbitMQ.URL,
			cfg.Messaging.RabbitMQ.Exchange,
			cfg.Messaging.RabbitMQ.ExchangeType,
			cfg.Messaging.RabbitMQ.RoutingKey,
		)
		if err == nil {
			publisher = pub
		} else {
			log.Printf("warning: RabbitMQ disabled due to init error: %v", err)
		}
	}

	var metricsService *metrics.Service
	if cfg.Metrics.Enabled {
		metricsService = metrics.NewService()
	}

	srv, err := server.New(cfg, backend, authService, publisher, metricsService)
	if err != nil {
		return err
	}
	return srv.Start()
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = host
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("root") {
		cfg.Roots = roots
	}
	if flags.Changed("backend") {
		cfg.Backend = backendArg
	}
	if flags.Changed("disable-fallback") {
		cfg.Fallback.Disable = disableFallback
	}
	if flags.Changed("fallback-url") {
		cfg.Fallback.URL = fallbackURL
	}
	if flags.Changed("cache-control") {
		cfg.CacheControl = cacheControl
	}
	if flags.Changed("welcome-file") {
		cfg.WelcomeFile = welcomeFile
	}
	if flags.Changed("health-endpoint") {
		cfg.Health = healthEndpoint
	}
	if flags.Changed("hash-algo") {
		cfg.HashAlgo = hashAlgo
	}
	if flags.Changed("password-file") {
		cfg.Auth.PasswordFile = passwordFile
	}
	if flags.Changed("auth") {
		cfg.Auth.Authenticate = authenticate
	}
	if flags.Changed("verbose") {
		cfg.Logging.Verbose = verbose
	}
}

func setupLogging(cfg *config.Config) error {
	switch {
	case cfg.Logging.GinMode != "":
		gin.SetMode(cfg.Logging.GinMode)
	case cfg.Logging.Verbose:
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logging.Output != "" && cfg.Logging.Output != "-" {
		file, err := os.OpenFile(cfg.Logging.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		log.SetOutput(file)
		gin.DefaultWriter = io.MultiWriter(file)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
