package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Relayline/pulse/internal/config"
	"github.com/Relayline/pulse/internal/crm"
	"github.com/Relayline/pulse/internal/embed"
	"github.com/Relayline/pulse/internal/logging"
	"github.com/Relayline/pulse/internal/vecstore"
)

var (
	embedTenant string
	embedType   string
	embedLimit  int
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate embeddings for a tenant's entities",
	Long: `Generate embeddings for a tenant's entities.

The run is idempotent: entities whose content hash is unchanged are
skipped, so re-running after a partial failure only retries what failed.

Examples:
  pulse embed --tenant acme --type deal
  pulse embed --tenant acme --type contact --limit 500`,
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().StringVar(&embedTenant, "tenant", "", "Tenant to generate embeddings for (required)")
	embedCmd.Flags().StringVar(&embedType, "type", "deal", "Entity type: deal, contact or activity")
	embedCmd.Flags().IntVar(&embedLimit, "limit", 0, "Maximum number of entities to consider (0 = all)")
	_ = embedCmd.MarkFlagRequired("tenant")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	entityType, err := crm.ParseEntityType(embedType)
	if err != nil {
		return err
	}

	crmStore, err := crm.OpenSQLStore(cfg.CRM.SQLitePath)
	if err != nil {
		return err
	}
	defer crmStore.Close()

	vectors, err := vecstore.NewMilvusStore(ctx, cfg.MilvusConfig())
	if err != nil {
		return err
	}
	defer vectors.Close()

	embedder, err := embed.NewOpenAIEmbedder(cfg.Embedding.Model, cfg.Embedding.Dimension)
	if err != nil {
		return err
	}
	generator, err := embed.NewGenerator(crmStore, vectors, embedder, cfg.GeneratorConfig())
	if err != nil {
		return err
	}

	report, err := generator.Run(ctx, embedTenant, entityType, nil, embedLimit)
	if err != nil {
		return err
	}

	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ processed %d, skipped %d", report.Processed, report.Skipped)))
	if report.Failed > 0 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("✗ failed %d (re-run to retry)", report.Failed)))
	}
	return nil
}
