package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/redbco/mlregistry/internal/config"
	"github.com/spf13/cobra"
)

var (
	configFile string

	// Build information, set with -ldflags
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func printVersionInfo() {
	fmt.Printf("mlregistry %s\n", Version)
	fmt.Printf("Built: %s, from commit: %s\n", BuildTime, GitCommit)
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mlregistry",
	Short: "BigQuery ML model registry",
	Long: "Extracts metadata of BigQuery ML models and records it in a registry table " +
		"in the same warehouse.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Lookup("version") != nil && cmd.Flags().Lookup("version").Changed {
			printVersionInfo()
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", config.DefaultPath(), "Path to config file")
	pf.String("project", "", "Project that holds the registry and the models")
	pf.String("dataset", "", "Dataset of the registry table and default dataset for models")
	pf.String("table", "", "Registry table name")
	pf.String("region", "", "Region of the job history used by the sql command")
	pf.String("location", "", "Location for queries")
	pf.String("credentials", "", "Service account key file (defaults to $"+config.CredentialsEnv+")")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.Bool("skip-permission-check", false, "Do not verify IAM permissions when connecting")

	rootCmd.Flags().Bool("version", false, "Show version information and exit")

	setupCommands()
}

func main() {
	Execute()
}
