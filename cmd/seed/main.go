package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/zutrittswerk/portier/internal/entities"
	"github.com/zutrittswerk/portier/internal/generator"
	"github.com/zutrittswerk/portier/internal/infrastructure/config"
	"github.com/zutrittswerk/portier/internal/infrastructure/database"
	"github.com/zutrittswerk/portier/internal/repositories/postgres"
)

var (
	envFlag    string
	outFlag    string
	applyFlag  bool
	users      int
	doors      int
	groups     int
	doorGroups int
	seed       int64
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Test data generator for Portier",
	Long: `Test data generator for Portier.
Produces dataset JSON for POST /api/import, or writes directly to the database.`,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic dataset",
	Long:  `Generate a synthetic dataset with hierarchical groups and random permission edges.`,
	Run:   runGenerate,
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Emit the small demo dataset",
	Long:  `Emit the fixed demo office dataset (Max, Tom, Lisa and friends).`,
	Run:   runDemo,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
	rootCmd.PersistentFlags().StringVarP(&outFlag, "out", "o", "", "Write dataset JSON to this file (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&applyFlag, "apply", false, "Import the dataset into the configured database")

	generateCmd.Flags().IntVar(&users, "users", 10000, "Number of users")
	generateCmd.Flags().IntVar(&doors, "doors", 1000, "Number of doors")
	generateCmd.Flags().IntVar(&groups, "groups", 150, "Number of user groups")
	generateCmd.Flags().IntVar(&doorGroups, "door-groups", 120, "Number of door groups")
	generateCmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}

func runGenerate(cmd *cobra.Command, args []string) {
	dataset := generator.Generate(generator.Config{
		Users:      users,
		Doors:      doors,
		Groups:     groups,
		DoorGroups: doorGroups,
		Seed:       seed,
	})
	emit(dataset)
}

func runDemo(cmd *cobra.Command, args []string) {
	emit(generator.DemoDataset())
}

func emit(dataset *entities.Dataset) {
	if err := dataset.Validate(); err != nil {
		log.Fatalf("Generated dataset failed validation: %v", err)
	}

	log.Printf("Dataset: %d users, %d doors, %d groups, %d door groups, %d memberships, %d allows, %d denies",
		len(dataset.Principals), len(dataset.Resources),
		len(dataset.PrincipalGroups), len(dataset.ResourceGroups),
		len(dataset.Memberships), len(dataset.Allows), len(dataset.Denies))

	if applyFlag {
		importDataset(dataset)
		return
	}

	out := os.Stdout
	if outFlag != "" {
		f, err := os.Create(outFlag)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dataset); err != nil {
		log.Fatalf("Failed to write dataset: %v", err)
	}
	if outFlag != "" {
		log.Printf("Dataset written to %s", outFlag)
	}
}

func importDataset(dataset *entities.Dataset) {
	if err := config.InitConfig(envFlag); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.Database.Enabled {
		log.Fatal("DB_ENABLED is false; nothing to import into")
	}

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	repo := postgres.NewPostgresStateRepository(pg.DB)
	if err := repo.Import(context.Background(), dataset); err != nil {
		log.Fatalf("Failed to import dataset: %v", err)
	}
	if err := repo.PublishInvalidation(context.Background(), "all"); err != nil {
		log.Printf("Warning: failed to publish invalidation: %v", err)
	}

	fmt.Println("Dataset imported")
}
