// Command server runs the greetings server.
//
// Configuration is loaded from a YAML file (-config, GREETINGS_CONFIG,
// ./config.yaml or /etc/greetings/config.yaml) with GREETINGS_* environment
// overrides. See pkg/config for the full list of settings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/greetings/pkg/auth"
	"github.com/rhuss/greetings/pkg/auth/apikey"
	"github.com/rhuss/greetings/pkg/auth/jwt"
	"github.com/rhuss/greetings/pkg/auth/noop"
	"github.com/rhuss/greetings/pkg/config"
	"github.com/rhuss/greetings/pkg/debug"
	"github.com/rhuss/greetings/pkg/greeting"
	"github.com/rhuss/greetings/pkg/observability"
	"github.com/rhuss/greetings/pkg/storage/memory"
	"github.com/rhuss/greetings/pkg/storage/postgres"
	"github.com/rhuss/greetings/pkg/transport"
	transporthttp "github.com/rhuss/greetings/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	store, err := newStore(cfg.Storage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	responder := greeting.New(store, greeting.Config{
		SaveTimeout: cfg.Greeting.SaveTimeout,
	})

	authMW, err := newAuthMiddleware(cfg)
	if err != nil {
		return err
	}

	wrap := func(greetings http.Handler) http.Handler {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok\n"))
		})
		mux.HandleFunc("GET /readyz", readyHandler(store))
		if cfg.Observability.Metrics.Enabled {
			mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
		}
		mux.Handle("/", greetings)

		return observability.MetricsMiddleware(authMW(mux))
	}

	srv := transporthttp.NewServer(responder, store,
		transporthttp.WithAddr(cfg.Server.Addr()),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithMaxDelay(cfg.Greeting.MaxDelay),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithHandlerWrapper(wrap),
	)

	slog.Info("greetings configured",
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"max_delay", cfg.Greeting.MaxDelay,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	debug.Log("transport", "listen address", "addr", cfg.Server.Addr())

	return srv.ListenAndServe()
}

// newStore returns the configured history store, or nil when history is
// disabled.
func newStore(cfg config.StorageConfig) (transport.HistoryStore, error) {
	switch cfg.Type {
	case "none":
		slog.Info("storage disabled")
		return nil, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return store, nil
	default:
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	}
}

// newAuthMiddleware builds the authentication chain for the configured
// auth type. With type "none" every request passes as an anonymous caller.
func newAuthMiddleware(cfg *config.Config) (func(http.Handler) http.Handler, error) {
	chain := &auth.AuthChain{DefaultDecision: auth.No}

	switch cfg.Auth.Type {
	case "none":
		chain.Authenticators = []auth.Authenticator{&noop.Authenticator{}}
		chain.DefaultDecision = auth.Yes
	case "apikey":
		entries := make([]apikey.Entry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.Entry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: k.Subject, ServiceTier: k.ServiceTier, Tenant: k.TenantID},
			})
		}
		authn, err := apikey.New(entries)
		if err != nil {
			return nil, fmt.Errorf("creating api key authenticator: %w", err)
		}
		chain.Authenticators = []auth.Authenticator{authn}
	case "jwt":
		j := cfg.Auth.JWT
		authn, err := jwt.New(jwt.Config{
			Secret:      []byte(j.Secret),
			Issuer:      j.Issuer,
			Audience:    j.Audience,
			UserClaim:   j.UserClaim,
			TenantClaim: j.TenantClaim,
			TierClaim:   j.TierClaim,
			Leeway:      j.Leeway,
		})
		if err != nil {
			return nil, fmt.Errorf("creating jwt authenticator: %w", err)
		}
		chain.Authenticators = []auth.Authenticator{authn}
	default:
		return nil, errors.New("unknown auth type " + cfg.Auth.Type)
	}

	var limiter auth.RateLimiter
	if rl := cfg.Auth.RateLimit; rl.DefaultRPM > 0 || len(rl.Tiers) > 0 {
		limiter = auth.NewInProcessLimiter(auth.Limits{DefaultRPM: rl.DefaultRPM, Tiers: rl.Tiers})
	}

	bypass := append([]string(nil), auth.DefaultBypassEndpoints...)
	if cfg.Observability.Metrics.Enabled {
		bypass = append(bypass, cfg.Observability.Metrics.Path)
	}

	return auth.Middleware(auth.Guard{Chain: chain, Limiter: limiter, Bypass: bypass}), nil
}

// readyHandler reports whether the history store is reachable.
func readyHandler(store transport.HistoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.HealthCheck(ctx); err != nil {
				slog.Warn("readiness check failed", "error", err)
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	}
}
