package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Relayline/pulse/internal/assembler"
	"github.com/Relayline/pulse/internal/coldstart"
	"github.com/Relayline/pulse/internal/config"
	"github.com/Relayline/pulse/internal/crm"
	"github.com/Relayline/pulse/internal/embed"
	"github.com/Relayline/pulse/internal/history"
	"github.com/Relayline/pulse/internal/httpapi"
	"github.com/Relayline/pulse/internal/insight"
	"github.com/Relayline/pulse/internal/llm"
	"github.com/Relayline/pulse/internal/logging"
	"github.com/Relayline/pulse/internal/vecstore"
)

var useMemoryStores bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the insight engine HTTP server",
	Long: `Run the insight engine HTTP server.

Required environment variables:
  OPENAI_API_KEY     - OpenAI API key for embeddings and generation
  MILVUS_ADDRESS     - Milvus server address (default: localhost:19530)
  REDIS_URL          - Redis URL for chat history (default: redis://localhost:6379)

Examples:
  pulse serve
  pulse serve --config /etc/pulse/pulse.yaml
  pulse serve --memory  # in-process stores, for local development`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&useMemoryStores, "memory", false, "Use in-process vector and history stores instead of Milvus and Redis")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F780FF")).Bold(true)
	infoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))

	crmStore, err := crm.OpenSQLStore(cfg.CRM.SQLitePath)
	if err != nil {
		return err
	}
	defer crmStore.Close()

	var vectors vecstore.Store
	var histStore history.Store
	if useMemoryStores {
		vectors = vecstore.NewMemoryStore()
		histStore = history.NewMemoryStore()
	} else {
		milvus, err := vecstore.NewMilvusStore(ctx, cfg.MilvusConfig())
		if err != nil {
			return err
		}
		vectors = milvus

		redisStore, err := history.NewRedisStore(ctx)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		histStore = redisStore
	}
	defer vectors.Close()

	embedder, err := embed.NewOpenAIEmbedder(cfg.Embedding.Model, cfg.Embedding.Dimension)
	if err != nil {
		return err
	}
	provider, err := llm.NewOpenAILLM(cfg.LLMProviderConfig())
	if err != nil {
		return err
	}

	detector, err := coldstart.NewDetector(crmStore, vectors, cfg.ColdStart)
	if err != nil {
		return err
	}
	asm, err := assembler.New(crmStore, vectors, embedder, histStore, cfg.RetrievalConfig())
	if err != nil {
		return err
	}
	generator, err := embed.NewGenerator(crmStore, vectors, embedder, cfg.GeneratorConfig())
	if err != nil {
		return err
	}
	insights, err := insight.NewService(crmStore, detector, asm, provider, histStore, cfg.Insight)
	if err != nil {
		return err
	}

	server := httpapi.NewServer(insights, generator, histStore, cfg.Retrieval.HistoryLimit)

	fmt.Println(headerStyle.Render("Pulse insight engine"))
	fmt.Println(infoStyle.Render(fmt.Sprintf("listening on %s", cfg.Server.Addr)))

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
