package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/persona-core/internal/adapters/driving/http"
	"github.com/custodia-labs/persona-core/internal/config"
	"github.com/custodia-labs/persona-core/internal/core/domain"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "persona-core",
		Short:        "Retrieval-augmented persona chat backend",
		Long:         "Answers messages in a persona's voice, grounded in the persona's historical posts stored in a managed vector index.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (environment variables take precedence)")

	root.AddCommand(newServeCmd(), newIndexCmd(), newChatCmd(), newVersionCmd())
	return root
}

// loadConfig reads configuration and installs the default slog logger
func loadConfig(needsLLM bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(needsLLM); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Ensure the posts index, then serve POST /chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			log.Printf("persona-core %s starting", version)

			a, err := newApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.ensureIndex(cmd.Context()); err != nil {
				return err
			}

			server := http.NewServer(http.Config{
				Host:           cfg.Server.Host,
				Port:           cfg.Server.Port,
				Version:        version,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Logger:         a.logger,
			}, a.chatService(), a.services, http.PingFunc(a.index.HealthCheck), a.dbPinger(), a.redisPinger())

			return server.Start(cmd.Context())
		},
	}
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create and populate the posts index if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.ensureIndex(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.AddCommand(newIndexStatusCmd())
	return cmd
}

func newIndexStatusCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "status [name]",
		Short: "Show the recorded provisioning state of an index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if all {
				if a.states == nil {
					return errors.New("--all needs DATABASE_URL for the index state registry")
				}
				states, err := a.states.List(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(states)
			}

			name := cfg.Index.Name
			if len(args) == 1 {
				name = args[0]
			}
			state, err := a.indexer.Status(cmd.Context(), name)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("index %s does not exist", name)
			}
			if err != nil {
				return err
			}
			return printJSON(state)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "List every index recorded in PostgreSQL")
	return cmd
}

func newChatCmd() *cobra.Command {
	var transcript bool

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message to the persona and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.ensureIndex(cmd.Context()); err != nil {
				return err
			}

			result, err := a.chatService().Chat(cmd.Context(), strings.Join(args, " "), nil)
			if err != nil {
				return err
			}
			if transcript {
				return printJSON(result.Transcript)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Reply)
			return nil
		},
	}
	cmd.Flags().BoolVar(&transcript, "transcript", false, "Print the full transcript instead of the reply")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
