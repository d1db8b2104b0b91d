package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"cloud.google.com/go/bigquery"
	"github.com/redbco/mlregistry/internal/archive"
	bqconn "github.com/redbco/mlregistry/internal/connector/bigquery"
	"github.com/redbco/mlregistry/internal/modeldata"
	"github.com/redbco/mlregistry/internal/schema"
	"github.com/redbco/mlregistry/pkg/mlcapabilities"
	"github.com/spf13/cobra"
)

// setupCommands initializes all commands
func setupCommands() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(initCmd)
}

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the registry table",
	Long: `Create the registry table with the sections enabled in the config.
Nothing happens if the table already exists; to change sections, drop and recreate it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		sections := s.cfg.Sections
		if f := cmd.Flags().Lookup("feature-importance"); f != nil && f.Changed {
			sections.FeatureImportance, _ = cmd.Flags().GetBool("feature-importance")
		}

		created, err := s.writer.CreateRegistry(cmd.Context(), sections)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("Table %s successfully created.\n", s.writer.Table())
		} else {
			fmt.Printf("Table %s already exists.\n", s.writer.Table())
		}
		return nil
	},
}

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add MODEL [MODEL...]",
	Short: "Add models to the registry",
	Long:  `Extract the metadata of each model and append one row per model to the registry table.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		for _, arg := range args {
			ref, err := modelAddress(arg, s.cfg)
			if err != nil {
				return err
			}
			m, err := modeldata.New(cmd.Context(), s.conn, ref.Project, ref.Dataset, ref.ModelID, modeldata.WithLogger(s.log))
			if err != nil {
				return err
			}
			if err := s.writer.AddModel(cmd.Context(), m); err != nil {
				return err
			}
			fmt.Printf("Model %s added.\n", ref)
		}
		return nil
	},
}

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show MODEL",
	Short: "Show extracted model metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ref, err := modelAddress(args[0], s.cfg)
		if err != nil {
			return err
		}
		m, err := modeldata.New(cmd.Context(), s.conn, ref.Project, ref.Dataset, ref.ModelID, modeldata.WithLogger(s.log))
		if err != nil {
			return err
		}
		rec, err := m.Record(cmd.Context())
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		return render(os.Stdout, rec, output)
	},
}

// sqlCmd represents the sql command
var sqlCmd = &cobra.Command{
	Use:   "sql MODEL",
	Short: "Print the CREATE MODEL statement of a model",
	Long: `Look up the statement that created the model in the job history of the project.
The model must have been created by a job in the configured project.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ref, err := modelAddress(args[0], s.cfg)
		if err != nil {
			return err
		}
		m, err := modeldata.New(cmd.Context(), s.conn, ref.Project, ref.Dataset, ref.ModelID, modeldata.WithLogger(s.log))
		if err != nil {
			return err
		}
		sql, err := m.GenerateModelSQL(cmd.Context(), s.cfg.Region)
		if err != nil {
			return err
		}
		fmt.Println(sql)
		return nil
	},
}

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the registry table schema",
	Long:  `Print the schema built from the configured sections, or with --live the schema of the existing table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		live, _ := cmd.Flags().GetBool("live")

		if !live {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return printSchema(cfg.Sections.BuildSchema(), output)
		}

		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		table, err := s.writer.Schema(cmd.Context())
		if err != nil {
			return err
		}
		return printSchema(table, output)
	},
}

// dropCmd represents the drop command
var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the registry table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to drop the registry without --yes")
		}
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.writer.Drop(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Table %s dropped.\n", s.writer.Table())
		return nil
	},
}

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify credentials and permissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Set("skip-permission-check", "false"); err != nil {
			return err
		}
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("Credentials for project %s hold every required permission.\n", s.cfg.Project)
		return nil
	},
}

// typesCmd represents the types command
var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List model types and what can be extracted for them",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tSUPPORTED\tTREE\tREGRESSION\tCLASSIFICATION\tTUNING")
		for _, t := range mlcapabilities.Types() {
			c := mlcapabilities.CapabilitiesOf(t)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t,
				yesNo(c.Supported), yesNo(c.Tree), yesNo(c.Regression), yesNo(c.Classification), yesNo(c.TuningEligible))
		}
		return w.Flush()
	},
}

// archiveCmd represents the archive command
var archiveCmd = &cobra.Command{
	Use:   "archive MODEL [MODEL...]",
	Short: "Store model metadata snapshots in Cloud Storage",
	Long:  `Write the extracted metadata of each model as JSON to the configured bucket.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		store, err := archive.OpenGCS(cmd.Context(), s.cfg.ArchiveBucket, bqconn.ClientOptions(connConfig(s.cfg))...)
		if err != nil {
			return err
		}
		defer store.Close()
		archiver := archive.New(store, s.cfg.ArchivePrefix)

		for _, arg := range args {
			ref, err := modelAddress(arg, s.cfg)
			if err != nil {
				return err
			}
			m, err := modeldata.New(cmd.Context(), s.conn, ref.Project, ref.Dataset, ref.ModelID, modeldata.WithLogger(s.log))
			if err != nil {
				return err
			}
			rec, err := m.Record(cmd.Context())
			if err != nil {
				return err
			}
			name, err := archiver.Archive(cmd.Context(), rec)
			if err != nil {
				return err
			}
			fmt.Printf("Model %s archived to gs://%s/%s\n", ref, s.cfg.ArchiveBucket, name)
		}
		return nil
	},
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.WriteFile(configFile); err != nil {
			return err
		}
		fmt.Printf("Config written to %s\n", configFile)
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func printSchema(s bigquery.Schema, output string) error {
	var (
		data []byte
		err  error
	)
	switch output {
	case "", "json":
		data, err = schema.ToJSON(s)
		data = append(data, '\n')
	case "yaml":
		data, err = schema.ToYAML(s)
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func init() {
	createCmd.Flags().Bool("feature-importance", false, "Store feature importance instead of plain feature names")
	addCmd.Flags().Bool("strict", false, "Fail for non-tree models when the table stores feature importance")
	showCmd.Flags().StringP("output", "o", "json", "Output format (json, yaml)")
	schemaCmd.Flags().StringP("output", "o", "json", "Output format (json, yaml)")
	schemaCmd.Flags().Bool("live", false, "Read the schema of the existing table")
	dropCmd.Flags().Bool("yes", false, "Confirm deletion")
	archiveCmd.Flags().String("bucket", "", "Cloud Storage bucket for snapshots")
	archiveCmd.Flags().String("prefix", "", "Object name prefix")
}
