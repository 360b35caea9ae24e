package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/xhad/docbot/internal/types"
	cfgPkg "github.com/xhad/docbot/pkg/config"
)

var (
	cfgFile string
	envFile string
	folder  string
	model   string
	backend string

	cfg *cfgPkg.Config
)

var rootCmd = &cobra.Command{
	Use:   "docbot",
	Short: "Answer questions about the documents in a Dropbox folder",
	Long: `docbot lists a Dropbox folder, extracts the text of its PDF, DOCX and
Excel files, indexes it with OpenAI embeddings and answers questions about it.

Example usage:
  docbot                          # Terminal chat (same as 'docbot chat')
  docbot chat --folder /reports   # Start with another folder
  docbot serve --port 8080        # Web page on http://localhost:8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env never overrides variables already set in the environment
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return types.NewFault(types.ConfigurationFault, "load env file", err)
			}
		} else {
			_ = godotenv.Load()
		}

		var err error
		cfg, err = cfgPkg.LoadConfig(cfgFile)
		if err != nil {
			return types.NewFault(types.ConfigurationFault, "load config", err)
		}
		applyFlags(cmd, cfg)

		return nil
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file (default is ./.env when present)")
	rootCmd.PersistentFlags().StringVarP(&folder, "folder", "f", "", "Dropbox folder (default "+cfgPkg.DefaultFolder+")")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "OpenAI completion model")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "vector index backend: memory or pgvector")
}

func applyFlags(cmd *cobra.Command, config *cfgPkg.Config) {
	flags := cmd.Flags()
	if flags.Changed("folder") {
		config.Dropbox.Folder = folder
	}
	if flags.Changed("model") {
		config.OpenAI.Model = model
	}
	if flags.Changed("backend") {
		config.Index.Backend = backend
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
