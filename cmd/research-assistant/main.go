// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-assistant CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/archive"
	"github.com/pdiddy/research-assistant/internal/arxiv"
	"github.com/pdiddy/research-assistant/internal/config"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/internal/orchestrator"
	"github.com/pdiddy/research-assistant/internal/report"
	"github.com/pdiddy/research-assistant/internal/secrets"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Store

// rootCmd is the base command for the research-assistant CLI.
var rootCmd = &cobra.Command{
	Use:   "research-assistant",
	Short: "Autonomous literature reviews from arXiv",
	Long: `research-assistant turns a research topic into a literature review. A
planner decomposes the topic into questions and arXiv queries, a retriever
collects papers, an analyzer and a critic iterate until coverage is good
enough, and a reporter writes the review in Markdown.

Run one session with "run", or start the HTTP API with "serve".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		s, err := secrets.Load(secrets.DefaultDir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-assistant.yaml or ~/.config/research-assistant/research-assistant.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console, json")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-assistant")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-assistant"))
		}
	}

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    types.Config
	logger *zap.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper(), loadedSecrets)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// newOrchestrator wires the agents to the configured model and arXiv.
func (a *app) newOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	client, err := llm.New(ctx, a.cfg.LLM)
	if err != nil {
		return nil, a.explainLLMError(err)
	}
	return a.orchestratorFor(client), nil
}

func (a *app) orchestratorFor(client llm.Client) *orchestrator.Orchestrator {
	src := arxiv.New(a.cfg.Arxiv, a.logger)
	agents := orchestrator.NewAgents(client, src, a.cfg.Arxiv.RequestDelay, a.logger.Named("agents"))
	return orchestrator.New(agents, a.cfg.Orchestrator, a.logger.Named("orchestrator"))
}

func (a *app) explainLLMError(err error) error {
	if errors.Is(err, llm.ErrNoAPIKey) {
		return fmt.Errorf("%s is not configured. Please set it in your .env file, %s/%s, or %s_LLM_API_KEY",
			config.ProviderEnvVar(a.cfg.LLM.Provider), secrets.DefaultDir,
			secrets.KeyName(string(a.cfg.LLM.Provider)), config.EnvPrefix)
	}
	return err
}

// openArchive opens the archive when enabled, or returns nil.
func (a *app) openArchive(enabled bool) (*archive.Store, error) {
	if !enabled {
		return nil, nil
	}
	return archive.Open(a.cfg.Archive.Path)
}

// persist writes the report directory and archives s, as configured.
// Failures are logged; the session itself is unaffected.
func (a *app) persist(ctx context.Context, s *types.Session, store *archive.Store, outputDir string) {
	if outputDir != "" {
		paths, err := report.Write(outputDir, s)
		if err != nil {
			a.logger.Error("writing report", zap.String("session", s.ID), zap.Error(err))
		} else {
			a.logger.Info("report written", zap.String("session", s.ID), zap.String("dir", paths.Dir))
		}
	}
	if store != nil {
		if err := store.Save(ctx, s); err != nil {
			a.logger.Error("archiving session", zap.String("session", s.ID), zap.Error(err))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
