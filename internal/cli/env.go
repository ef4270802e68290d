package cli

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/draftkeep/internal/backend"
	"github.com/roach88/draftkeep/internal/config"
	"github.com/roach88/draftkeep/internal/engine"
	"github.com/roach88/draftkeep/internal/rules"
	"github.com/roach88/draftkeep/internal/scoring"
	"github.com/roach88/draftkeep/internal/store"
	"github.com/roach88/draftkeep/internal/store/badgerkv"
)

// env is the opened storage stack for one command invocation.
type env struct {
	cfg      *config.Config
	store    engine.DraftStore
	reports  *backend.Local
	registry *prometheus.Registry
	metrics  *engine.Metrics
	logger   *slog.Logger
	closers  []func() error
}

// openEnv opens the configured draft store and the reports database.
func openEnv(cfg *config.Config) (*env, error) {
	rt := &env{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		logger:   slog.Default(),
	}
	rt.metrics = engine.NewMetrics(rt.registry)

	var reportsDB *store.Store
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		bcfg := badgerkv.DefaultConfig(cfg.Storage.Path)
		bcfg.Logger = rt.logger
		st, err := badgerkv.Open(bcfg)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		rt.store = st
		rt.closers = append(rt.closers, st.Close)
	default:
		st, err := store.Open(cfg.Storage.Path, store.WithLogger(rt.logger))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		rt.store = st
		rt.closers = append(rt.closers, st.Close)
		reportsDB = st
	}

	if path := cfg.Reports(); path != "" {
		st, err := store.Open(path, store.WithLogger(rt.logger))
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open reports database: %w", err)
		}
		rt.closers = append(rt.closers, st.Close)
		reportsDB = st
	}

	reports, err := backend.NewLocal(reportsDB.DB())
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init reports backend: %w", err)
	}
	rt.reports = reports

	rt.logger.Debug("storage ready",
		"backend", cfg.Storage.Backend,
		"path", cfg.Storage.Path,
		"reports", cfg.Reports())
	return rt, nil
}

// Close closes everything openEnv opened, newest first.
func (r *env) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Error("error closing storage", "error", err)
		}
	}
	r.closers = nil
}

// detector builds a crash detector with the configured recovery window.
func (r *env) detector() *engine.Detector {
	return engine.NewDetector(r.store, r.cfg.Settings().RecoveryWindow, time.Now, r.logger)
}

// steps builds the default step validator.
func (r *env) steps() (*rules.Steps, error) {
	steps, err := rules.NewSteps(r.cfg.Policy())
	if err != nil {
		return nil, fmt.Errorf("load step rules: %w", err)
	}
	return steps, nil
}

// sessionOptions wires the full default stack into a session.
func (r *env) sessionOptions() ([]engine.SessionOption, error) {
	steps, err := r.steps()
	if err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	return []engine.SessionOption{
		engine.WithSettings(r.cfg.Settings()),
		engine.WithPolicy(r.cfg.Policy()),
		engine.WithStepValidator(steps),
		engine.WithFieldValidator(rules.NewField(r.cfg.Policy())),
		engine.WithScorer(scoring.Default{}),
		engine.WithBackend(r.reports),
		engine.WithIDGenerator(engine.UUIDv7Generator{}),
		engine.WithClientInfo("draftkeep-cli", host),
		engine.WithLogger(r.logger),
		engine.WithMetrics(r.metrics),
	}, nil
}

// metricsText renders every non-zero counter as "name{labels} value".
func (r *env) metricsText() (string, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue()
			if v == 0 {
				continue
			}
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, v))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}
