package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/maps-enrich/internal/config"
	"github.com/sells-group/maps-enrich/internal/metrics"
	"github.com/sells-group/maps-enrich/internal/resilience"
	"github.com/sells-group/maps-enrich/internal/store"
	sfpkg "github.com/sells-group/maps-enrich/pkg/salesforce"
	"github.com/sells-group/maps-enrich/pkg/serpapi"
)

// appEnv holds the clients shared by the enrich, sync, stats and dedupe
// commands.
type appEnv struct {
	Store    store.Store
	SF       sfpkg.Client
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates cfg for mode, opens and migrates the store, and logs in
// to Salesforce. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	sf, err := initSalesforce()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &appEnv{
		Store:    st,
		SF:       sf,
		Metrics:  metrics.New(reg),
		Registry: reg,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.MaxConns)
}

func initSalesforce() (sfpkg.Client, error) {
	creds, err := salesforceCreds(cfg.Salesforce, os.ReadFile)
	if err != nil {
		return nil, err
	}

	sf, err := salesforce.Init(creds)
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Salesforce.RateLimit)), nil
}

// salesforceCreds picks the OAuth flow: JWT when a key path is set, then
// username/password, then client credentials.
func salesforceCreds(c config.SalesforceConfig, readFile func(string) ([]byte, error)) (salesforce.Creds, error) {
	if c.ClientID == "" {
		return salesforce.Creds{}, eris.New("salesforce client ID is required (ENRICH_SALESFORCE_CLIENT_ID)")
	}

	switch {
	case c.KeyPath != "":
		pemData, err := readFile(c.KeyPath)
		if err != nil {
			return salesforce.Creds{}, eris.Wrap(err, "read salesforce JWT private key")
		}
		zap.L().Debug("salesforce auth: jwt bearer")
		return salesforce.Creds{
			Domain:         c.LoginURL,
			Username:       c.Username,
			ConsumerKey:    c.ClientID,
			ConsumerRSAPem: string(pemData),
		}, nil
	case c.Username != "" && c.Password != "":
		zap.L().Debug("salesforce auth: username/password")
		return salesforce.Creds{
			Domain:         c.LoginURL,
			Username:       c.Username,
			Password:       c.Password,
			SecurityToken:  c.SecurityToken,
			ConsumerKey:    c.ClientID,
			ConsumerSecret: c.ClientSecret,
		}, nil
	case c.ClientSecret != "":
		zap.L().Debug("salesforce auth: client credentials")
		return salesforce.Creds{
			Domain:         c.LoginURL,
			ConsumerKey:    c.ClientID,
			ConsumerSecret: c.ClientSecret,
		}, nil
	default:
		return salesforce.Creds{}, eris.New("salesforce: no usable credentials (key_path, username/password or client_secret)")
	}
}

func initSerp() serpapi.Client {
	return serpapi.NewClient(cfg.SerpAPI.Key,
		serpapi.WithBaseURL(cfg.SerpAPI.BaseURL),
		serpapi.WithLocale(cfg.SerpAPI.Language, cfg.SerpAPI.Country),
		serpapi.WithRateLimit(cfg.SerpAPI.RateLimit),
		serpapi.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.SerpAPI.TimeoutSecs) * time.Second}),
	)
}

// serpGuard builds the retry and circuit-breaker policy for SerpAPI calls.
func serpGuard() resilience.Guard {
	return resilience.Guard{
		Backoff: resilience.NewBackoff(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs, cfg.Retry.Jitter),
		Breaker: resilience.NewBreaker("serpapi", cfg.Circuit.FailureThreshold, time.Duration(cfg.Circuit.CooldownSecs)*time.Second),
	}
}

// serveMetrics starts the Prometheus listener in the background when addr is
// set. It stops with ctx.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr, reg); err != nil {
			zap.L().Error("metrics listener failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
}
