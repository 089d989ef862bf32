package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/middleware"
	"github.com/xraph/tenantstore/provider"
	"github.com/xraph/tenantstore/scope"
)

// Version is set at build time.
var Version = "dev"

type globalFlags struct {
	config     string
	uri        string
	tenant     string
	collection string
	timeout    time.Duration
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "tenantstore",
		Short: "Inspect and export tenant-scoped document collections",
		Long: `tenantstore runs read operations against a tenant's collection using the
same pooled data-access layer as the services.

Configuration is read from --config (or tenantstore.yaml) and TENANTSTORE_*
environment variables.

Example:
  tenantstore count --tenant acme --collection providers
  tenantstore find --tenant acme --collection providers --query '{"active": true}' --limit 5
  tenantstore export --tenant acme --collection providers --columns name,email > providers.csv`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.config, "config", "", "config file (default: ./tenantstore.yaml)")
	pf.StringVar(&g.uri, "uri", "", "MongoDB connection string, overrides the config")
	pf.StringVarP(&g.tenant, "tenant", "t", "", "tenant namespace")
	pf.StringVarP(&g.collection, "collection", "c", "", "collection name")
	pf.DurationVar(&g.timeout, "timeout", 30*time.Second, "overall command timeout")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log every operation to stderr")

	root.AddCommand(
		newPingCmd(g),
		newCountCmd(g),
		newFindCmd(g),
		newExportCmd(g),
		newAggregateCmd(g),
	)
	return root
}

func (g *globalFlags) logger() *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (g *globalFlags) scope() (scope.Scope, error) {
	s := scope.Scope{Tenant: g.tenant, Collection: g.collection}
	if err := s.Validate(); err != nil {
		return scope.Scope{}, fmt.Errorf("--tenant and --collection: %w", err)
	}
	return s, nil
}

// withProvider opens a provider for the duration of fn.
func (g *globalFlags) withProvider(cmd *cobra.Command, fn func(ctx context.Context, pr *provider.Provider) error) error {
	cfg, err := tenantstore.LoadConfig(g.config)
	if err != nil {
		return err
	}
	if g.uri != "" {
		cfg.URI = g.uri
	}
	// A CLI run needs one connection; skip warming the configured minimum.
	cfg.Min = 0

	ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
	defer cancel()

	logger := g.logger()
	pr, err := provider.Open(ctx, cfg,
		provider.WithLogger(logger),
		provider.WithMiddleware(middleware.Logging(logger)),
	)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pr.Close(closeCtx); err != nil {
			logger.Warn("close provider", slog.String("error", err.Error()))
		}
	}()

	return fn(ctx, pr)
}

// parseDoc decodes a relaxed extended JSON document flag. Empty input
// yields an empty document.
func parseDoc(flag, s string) (bson.M, error) {
	if s == "" {
		return bson.M{}, nil
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON([]byte(s), false, &m); err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return m, nil
}

// parseSort decodes a sort flag of the form "field,-other".
func parseSort(s string) bson.D {
	if s == "" {
		return nil
	}
	var d bson.D
	for _, f := range splitList(s) {
		dir := 1
		switch f[0] {
		case '-':
			dir, f = -1, f[1:]
		case '+':
			f = f[1:]
		}
		if f != "" {
			d = append(d, bson.E{Key: f, Value: dir})
		}
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
