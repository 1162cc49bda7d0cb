package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"taskpulse/internal/classify"
	"taskpulse/internal/config"
	"taskpulse/internal/embedding"
	"taskpulse/internal/engine"
	"taskpulse/internal/llm"
	"taskpulse/internal/logging"
	"taskpulse/internal/retrieval"
	"taskpulse/internal/scorer"
	"taskpulse/internal/store"
	"taskpulse/internal/types"
)

var version = "0.3.0"

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "taskpulse",
	Short: "taskpulse - task extraction and reconciliation engine",
	Long: `taskpulse watches a stream of chat messages, decides whether each one
expresses actionable task intent, and reconciles the decision against a
per-conversation task store.

Pipeline: embed -> retrieve context -> score candidates -> classify -> apply.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.EnsureDataDir(); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		return logging.Initialize(cfg.DataDir, cfg.Logging.Debug || verbose, cfg.Logging.Level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd follows the live message feed after an initial backlog sweep.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep the backlog, then process the live message feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, st, err := buildEngine()
		if err != nil {
			return err
		}
		defer st.Close()

		logger.Info("taskpulse starting",
			zap.String("version", version),
			zap.String("db", cfg.DatabasePath()),
		)
		return eng.Run(ctx)
	},
}

// sweepCmd processes the current backlog once and exits.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Process the unprocessed message backlog once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, st, err := buildEngine()
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := eng.SweepOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("sweep finished", zap.Int("messages", n))
		return nil
	},
}

// ingestCmd inserts a message into the store, feeding any running engine.
var ingestCmd = &cobra.Command{
	Use:   "ingest [sender] [receiver] [text]",
	Short: "Insert a chat message for processing",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewStore(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()

		msg, err := st.InsertMessage(cmd.Context(), types.Message{
			SenderID:   args[0],
			ReceiverID: args[1],
			Content:    args[2],
		})
		if err != nil {
			return err
		}
		fmt.Printf("message %s ingested\n", msg.ID)
		return nil
	},
}

// tasksCmd lists a conversation's recent tasks.
var tasksCmd = &cobra.Command{
	Use:   "tasks [user-a] [user-b]",
	Short: "List recent tasks for a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewStore(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()

		key := types.NewConversationKey(args[0], args[1])
		tasks, err := st.RecentTasks(cmd.Context(), key, cfg.Retrieval.MaxTasks)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("no tasks")
			return nil
		}
		for _, t := range tasks {
			due := "-"
			if t.DueDate != nil {
				due = t.DueDate.Format("2006-01-02")
			}
			fmt.Printf("%s  [%s/%s]  due=%s  %s\n", t.ID, t.Status, t.Priority, due, t.Content)
		}
		return nil
	},
}

// initCmd writes the default configuration to disk.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config already exists at %s", configPath)
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", configPath)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("taskpulse %s\n", version)
	},
}

// buildEngine wires the pipeline stages from configuration.
func buildEngine() (*engine.Engine, *store.Store, error) {
	st, err := store.NewStore(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	embedder, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("embedding engine: %w", err)
	}
	resolver := embedding.NewResolver(embedder)

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("llm client: %w", err)
	}

	eng := engine.New(
		st,
		resolver,
		retrieval.New(st, cfg.Retrieval),
		scorer.New(resolver, cfg.Scorer),
		classify.NewLLMClassifier(client),
		cfg.Engine,
	)
	return eng, st, nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "taskpulse.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(runCmd, sweepCmd, ingestCmd, tasksCmd, initCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
