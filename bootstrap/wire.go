// ABOUTME: Builds the per-account sync stack from configuration
// ABOUTME: Shared pieces (database, metrics, run history) are created once and handed to every account

package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"k8s.io/client-go/kubernetes"

	"greader-sync/config"
	"greader-sync/driver"
	"greader-sync/models"
	"greader-sync/repository"
	"greader-sync/service"
	"greader-sync/utils"
)

const userAgent = "greader-sync/1.0"

// Account is the wired sync stack of one configured account
type Account struct {
	Config config.AccountConfig
	Sync   *service.AccountSyncService
	Quota  *service.QuotaGuard
	// Tokens is nil for accounts that log in with a password
	Tokens *service.TokenService

	orchestrator *service.SyncOrchestrator
	closer       io.Closer
}

// FetchTree downloads the feed tree without touching local state
func (a *Account) FetchTree(ctx context.Context) (*models.Tree, error) {
	tree, status := a.orchestrator.FetchTree(ctx, a.Config.WantIcons)
	if status != models.FeedStatusNormal {
		return nil, fmt.Errorf("%w: %s", service.ErrTreeUnavailable, status)
	}
	return tree, nil
}

// Dependencies holds everything the commands need
type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *sql.DB
	Registry *prometheus.Registry
	Metrics  *utils.SyncMetrics
	Runs     repository.SyncRunRepository
	Accounts []*Account

	kube     kubernetes.Interface
	kubeOnce sync.Once
	kubeErr  error
}

// Option adjusts how dependencies are built
type Option func(*Dependencies)

// WithKubernetesClient supplies the clientset used by the kubernetes token store
func WithKubernetesClient(clientset kubernetes.Interface) Option {
	return func(d *Dependencies) {
		d.kube = clientset
	}
}

// BuildDependencies opens the database and wires every configured account.
// The returned cleanup closes what was opened and is safe to defer.
func BuildDependencies(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...Option) (*Dependencies, func(), error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := repository.OpenDatabase(ctx, cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := &Dependencies{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Registry: registry,
		Metrics:  utils.NewSyncMetrics(registry),
		Runs:     repository.NewSQLSyncRunRepository(db, cfg.Database.Driver, log),
	}
	for _, opt := range opts {
		opt(deps)
	}

	for _, accountCfg := range cfg.Accounts {
		account, err := deps.buildAccount(accountCfg)
		if err != nil {
			deps.Close()
			return nil, nil, fmt.Errorf("account %s: %w", accountCfg.ID, err)
		}
		deps.Accounts = append(deps.Accounts, account)
	}

	log.Info("Dependencies built",
		"accounts", len(deps.Accounts),
		"db_driver", cfg.Database.Driver)

	return deps, deps.Close, nil
}

// Account returns the wired account with the given id
func (d *Dependencies) Account(id string) (*Account, bool) {
	for _, a := range d.Accounts {
		if a.Config.ID == id {
			return a, true
		}
	}
	return nil, false
}

// Close releases the database and any token store connections
func (d *Dependencies) Close() {
	for _, a := range d.Accounts {
		if a.closer != nil {
			if err := a.closer.Close(); err != nil {
				d.Logger.Warn("Failed to close token store", "account", a.Config.ID, "error", err)
			}
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Warn("Failed to close database", "error", err)
		}
	}
}

// Ping reports whether the database answers
func (d *Dependencies) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

func (d *Dependencies) buildAccount(acct config.AccountConfig) (*Account, error) {
	cfg := d.Config
	log := d.Logger.With("account", acct.ID, "provider", acct.ProviderKind().String())
	spec := acct.Spec()
	baseURL := acct.EffectiveBaseURL()

	quota := service.NewQuotaGuard(acct.QuotaSafetyPercent, log)
	quota.OnUpdate(func(usage models.APIUsage) {
		d.Metrics.APIUsage(acct.ID, usage)
	})

	transport := driver.NewHTTPTransport(driver.HTTPTransportConfig{
		Timeout:           cfg.HTTP.ProviderHTTPTimeout,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.ProviderRPSBurst,
		UserAgent:         userAgent,
		OnAPIUsage:        quota.Update,
	}, log)

	account := &Account{Config: acct, Quota: quota}

	var tokenProvider service.TokenProvider
	if spec.UsesOAuth() {
		repo, closer, err := d.tokenRepository(acct, log)
		if err != nil {
			return nil, err
		}
		oauthClient := driver.NewOAuth2Client(acct.ClientID, acct.ClientSecret, baseURL, log)
		account.Tokens = service.NewTokenService(repo, oauthClient, log)
		account.closer = closer
		tokenProvider = account.Tokens
	}

	sessionCfg := service.AuthSessionConfig{
		Spec:     spec,
		BaseURL:  baseURL,
		Username: acct.Username,
		Password: acct.Password,
		Timeout:  cfg.HTTP.ProviderHTTPTimeout,
	}
	session := service.NewAuthSession(sessionCfg, transport, tokenProvider, log)
	if account.Tokens != nil {
		session.SetOnAuthFailure(account.Tokens.OnAuthFailure)
	}
	client := service.NewGreaderClient(sessionCfg, session, transport, log)

	var icons service.IconResolver
	if acct.WantIcons {
		icons = service.NewCachedIconResolver(
			service.NewHTTPIconResolver(transport, cfg.HTTP.ProviderHTTPTimeout, log),
			cfg.Sync.IconCacheSize,
			cfg.Sync.IconCacheTTL,
		)
	}

	orchestrator := service.NewSyncOrchestrator(service.SyncConfig{
		Spec:              spec,
		UnreadOnly:        acct.UnreadOnly,
		IntelligentSync:   acct.UsesIntelligentSync(),
		MaxAge:            acct.NewerThan,
		GlobalThreshold:   acct.GlobalThreshold,
		BatchSize:         acct.BatchSize,
		ItemContentsBatch: acct.ItemContentsBatch,
	},
		client,
		service.NewContentDecoder(utils.NewSanitizer(), log),
		service.NewTreeDecoder(spec, baseURL, icons, log),
		log,
	)
	orchestrator.SetObserver(d.Metrics)
	account.orchestrator = orchestrator

	store := repository.NewMessageStateRepository(d.DB, cfg.Database.Driver, acct.ID, log)
	syncService := service.NewAccountSyncService(acct.ID, orchestrator, store, acct.WantIcons, d.Logger)
	syncService.SetRunRepository(d.Runs)
	syncService.SetQuotaGuard(quota)
	syncService.SetRecorder(d.Metrics)
	account.Sync = syncService

	return account, nil
}

// tokenRepository picks where an OAuth account keeps its tokens
func (d *Dependencies) tokenRepository(acct config.AccountConfig, log *slog.Logger) (repository.OAuth2TokenRepository, io.Closer, error) {
	cfg := d.Config
	switch acct.TokenStore {
	case config.TokenStoreKubernetes:
		clientset, err := d.kubernetesClient()
		if err != nil {
			return nil, nil, err
		}
		return repository.NewKubernetesSecretRepository(clientset, cfg.Kubernetes.Namespace, acct.TokenSecretName(), acct.ID, log), nil, nil
	case config.TokenStoreEnvFile:
		path := acct.TokenSecret
		if path == "" {
			path = acct.ID + ".token.env"
		}
		return repository.NewEnvFileTokenRepository(path, acct.ID, log), nil, nil
	case config.TokenStoreRedis:
		repo, err := repository.NewRedisTokenRepositoryWithURL(cfg.Redis.URL, acct.ID, log)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	case config.TokenStoreRemote:
		return repository.NewRemoteTokenRepository(cfg.TokenBrokerURL, acct.ID, log), nil, nil
	case config.TokenStoreDatabase, "":
		return repository.NewSQLTokenRepository(d.DB, cfg.Database.Driver, acct.ID, log), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown token store %q", acct.TokenStore)
	}
}

// kubernetesClient is created once and shared by every account using secrets
func (d *Dependencies) kubernetesClient() (kubernetes.Interface, error) {
	d.kubeOnce.Do(func() {
		if d.kube != nil {
			return
		}
		d.kube, d.kubeErr = d.Config.Kubernetes.CreateKubernetesClient()
	})
	if d.kubeErr != nil {
		return nil, errors.Join(errors.New("kubernetes client unavailable"), d.kubeErr)
	}
	return d.kube, nil
}
