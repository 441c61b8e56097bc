package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keygatehq/keygate/internal/event"
	"github.com/keygatehq/keygate/internal/server"
	"github.com/keygatehq/keygate/internal/service"
)

const banner = `
 _  _________   ____ _  _____ ___
| |/ / __\ \ / / __| \|_   _| __|
|   <| _| \ V / (_ |  / | | | _|
|_|\_\___| |_| \___/_/  |_| |___|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the keygate API server",
		Long:  "Start the HTTP server that issues and verifies API keys.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging, insecure HTTP allowed)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg := settings()
	if dev {
		cfg.Logging.Level = "debug"
		cfg.Auth.RequireSecure = false
	}
	logger := newLogger(cfg.Logging)

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()
	logger.Info("store initialized", "driver", st.Driver())

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "keygate-dev-secret-change-me"
		logger.Warn("auth.jwt_secret not set, using development secret")
	}
	authSvc := service.NewAuthService(st, jwtSecret)

	issuer := service.NewIssuer(st, service.IssuerConfig{
		Environments: cfg.Keys.Environments,
		KeyTypes:     cfg.Keys.Types,
		SizeBytes:    cfg.Keys.SizeBytes,
	}, nil, nil)

	bus := event.NewBus()
	issuer.Subscribe(bus)

	hasAdmin, err := st.HasAnyAdmin(ctx)
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: keygate admin create")
	}

	shutdownTimeout, err := time.ParseDuration(cfg.Server.ShutdownTimeout)
	if err != nil {
		shutdownTimeout = 30 * time.Second
	}

	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     cfg.Server.CORS.Origins,
		LoginRateLimit:  cfg.Server.LoginRateLimit,
		KeyRateLimit:    cfg.Server.KeyRateLimit,
		RequireSecure:   cfg.Auth.RequireSecure,
		Version:         versionString(),
	}

	srv := server.New(srvCfg, st, authSvc, issuer, bus, logger)

	fmt.Printf("→ Keygate %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Key batch:  %v x %v (%d-byte tokens)\n",
		cfg.Keys.Environments, cfg.Keys.Types, cfg.Keys.SizeBytes)
	fmt.Println()

	return srv.ListenAndServe()
}
