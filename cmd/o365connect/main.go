package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/o365connect/internal/adapters/driven/archive/maildir"
	"github.com/custodia-labs/o365connect/internal/adapters/driven/config"
	"github.com/custodia-labs/o365connect/internal/adapters/driven/secret"
	redisstore "github.com/custodia-labs/o365connect/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/o365connect/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/o365connect/internal/adapters/driving/cli"
	"github.com/custodia-labs/o365connect/internal/adapters/driving/oauth"
	"github.com/custodia-labs/o365connect/internal/connectors/microsoft"
	"github.com/custodia-labs/o365connect/internal/connectors/microsoft/discovery"
	"github.com/custodia-labs/o365connect/internal/connectors/microsoft/outlook"
	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
	"github.com/custodia-labs/o365connect/internal/core/ports/driving"
	"github.com/custodia-labs/o365connect/internal/core/services"
	"github.com/custodia-labs/o365connect/internal/logger"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// backend is the session and token cache storage chosen in the settings.
type backend struct {
	kv     driven.KeyValueStore
	tokens func(*secret.Sealer) driven.TokenCache
	closer io.Closer
}

//nolint:funlen // main initialisation requires sequential setup of all dependencies
func run() int {
	cli.SetVersion(version)
	ctx := context.Background()

	dir, err := config.Dir()
	if err != nil {
		logger.Error("failed to locate settings directory: %v", err)
		return 1
	}
	cfgPath := filepath.Join(dir, "config.toml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load settings: %v", err)
		return 1
	}

	store, err := openBackend(ctx, cfg, dir)
	if err != nil {
		logger.Error("failed to open %s session store: %v", cfg.Session.Backend, err)
		return 1
	}
	defer store.closer.Close()

	// Refresh tokens are sealed before they reach storage
	salt, err := secret.LoadOrCreateSalt(ctx, store.kv)
	if err != nil {
		logger.Error("failed to load token cache salt: %v", err)
		return 1
	}
	passphrase := cfg.TokenCache.Passphrase
	if passphrase == "" {
		passphrase = secret.InstallationPassphrase()
	}
	sealer, err := secret.NewSealer(passphrase, salt)
	if err != nil {
		logger.Error("failed to create token sealer: %v", err)
		return 1
	}

	// Identity: Azure AD through the loopback redirect
	authorizer := oauth.NewLoopbackAuthorizer(cfg.RedirectURI, os.Stderr)
	provider := microsoft.NewIdentityProvider(cfg.App(), authorizer, store.tokens(sealer))

	// Coordinators
	sessions := services.NewSessionStore(store.kv)
	authSvc := services.NewAuthCoordinator(provider, sessions, cfg.DiscoveryResource)
	discoverySvc := services.NewDiscoveryCoordinator(
		authSvc,
		discovery.NewClient(nil, cfg.DiscoveryURL),
		cfg.DiscoveryResource,
	)

	var archive *maildir.Archive
	var sentArchive driven.SentArchive
	if cfg.Archive.Enabled {
		archive = maildir.New(cfg.ArchivePath(dir), "")
		sentArchive = archive
	}
	mailSvc := services.NewMailCoordinator(authSvc, outlook.NewClient(nil, outlook.DefaultConfig()), sentArchive)

	template, err := services.NewMailTemplate(cfg.Mail.Subject, cfg.Mail.BodyTemplate)
	if err != nil {
		logger.Error("failed to parse mail template: %v", err)
		return 1
	}

	newFlow := func(d async.Dispatcher) driving.ConnectFlow {
		flow := services.NewConnectFlow(authSvc, discoverySvc, mailSvc, d)
		if archive != nil {
			flow.Subscribe(func(ev domain.FlowEvent) {
				if ev.Identity != nil {
					archive.SetSender(ev.Identity.DisplayableID)
				}
			})
		}
		return flow
	}

	// Inject services into CLI commands
	cli.SetServices(&cli.Services{
		Auth:       authSvc,
		Discovery:  discoverySvc,
		Mail:       mailSvc,
		NewFlow:    newFlow,
		Template:   template,
		Config:     cfg,
		ConfigPath: cfgPath,
		SetupHint:  provider.SetupHint(),
	})

	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}

// openBackend opens the configured session store. The sqlite store lives
// under dir unless the settings name a path.
func openBackend(ctx context.Context, cfg *config.Config, dir string) (*backend, error) {
	if cfg.Session.Backend == config.BackendRedis {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Session.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		prefix := cfg.Session.RedisPrefix
		return &backend{
			kv: redisstore.NewKV(client, prefix),
			tokens: func(s *secret.Sealer) driven.TokenCache {
				return redisstore.NewTokenCache(client, prefix, s)
			},
			closer: client,
		}, nil
	}

	store, err := sqlite.Open(ctx, cfg.DBPath(dir))
	if err != nil {
		return nil, err
	}
	return &backend{
		kv: sqlite.NewKV(store),
		tokens: func(s *secret.Sealer) driven.TokenCache {
			return sqlite.NewTokenCache(store, s)
		},
		closer: store,
	}, nil
}
