package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/grantscan/internal/archive"
	"github.com/hyperengineering/grantscan/internal/config"
	"github.com/hyperengineering/grantscan/internal/export"
	"github.com/hyperengineering/grantscan/internal/logging"
	"github.com/hyperengineering/grantscan/internal/matchsvc"
	"github.com/hyperengineering/grantscan/internal/narrative"
	"github.com/hyperengineering/grantscan/internal/scan"
	"github.com/hyperengineering/grantscan/internal/store"
	"github.com/hyperengineering/grantscan/internal/wizard"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	jsonOutput    bool
	scopeOverride string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "grantscan",
	Short: "GrantScan - find the grants, schemes and tax credits you may be owed",
	Long: "Answer the questionnaire one step at a time, scan it against the matching " +
		"service, and review or export the categorized results.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&scopeOverride, "scope", "",
		"Questionnaire scope (overrides config and GRANTSCAN_SCOPE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Log progress to stderr")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(grantsCmd)
	rootCmd.AddCommand(exportCmd)
}

// app wires the components every command works with.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.SQLiteStore
	service   *matchsvc.Client
	wizard    *wizard.Controller
	scans     *scan.Orchestrator
	narrative *narrative.Writer
	exporter  *export.Exporter
}

// newApp loads configuration and builds the components. The wizard state
// of the selected scope is restored before it returns.
func newApp(ctx context.Context, logOut io.Writer, logLevel string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if scopeOverride != "" {
		if err := store.ValidateScope(scopeOverride); err != nil {
			return nil, fmt.Errorf("--scope: %w", err)
		}
		cfg.Store.Scope = scopeOverride
	}
	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	logger := logging.New(logOut, logLevel, cfg.Log.Format)

	policy, err := scan.ParsePolicy(cfg.Scan.OverlapPolicy)
	if err != nil {
		return nil, err
	}

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	archiver, err := archive.New(cfg.Archive)
	if err != nil {
		db.Close()
		return nil, err
	}

	var tokens matchsvc.TokenSource
	if cfg.Service.AccessToken != "" || cfg.Service.RefreshToken != "" {
		tokens = matchsvc.NewMemoryTokens(cfg.Service.AccessToken, cfg.Service.RefreshToken)
	}
	service := matchsvc.New(matchsvc.Config{
		BaseURL: cfg.Service.BaseURL,
		Timeout: time.Duration(cfg.Service.Timeout),
		Tokens:  tokens,
	}, logger)

	var summarizer narrative.Summarizer
	if cfg.Narrative.Active() {
		summarizer = narrative.NewOpenAI(cfg.Narrative.APIKey, cfg.Narrative.Model)
	}

	w := wizard.New(
		wizard.WithStore(db, cfg.Store.Scope),
		wizard.WithLogger(logger),
	)
	w.Load(ctx)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     db,
		service:   service,
		wizard:    w,
		scans:     scan.New(service, scan.WithPolicy(policy), scan.WithLogger(logger)),
		narrative: narrative.NewWriter(summarizer, logger),
		exporter:  export.New(service, archiver, cfg.Store.Scope, logger),
	}, nil
}

// cliApp builds the app for one-shot commands, which stay quiet on
// stderr unless --verbose is given.
func cliApp(cmd *cobra.Command) (*app, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return newApp(cmd.Context(), cmd.ErrOrStderr(), level)
}

func (a *app) Close() error {
	return a.store.Close()
}
