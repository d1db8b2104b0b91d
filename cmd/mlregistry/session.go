package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/redbco/mlregistry/internal/config"
	"github.com/redbco/mlregistry/internal/connector"
	bqconn "github.com/redbco/mlregistry/internal/connector/bigquery"
	"github.com/redbco/mlregistry/internal/registry"
	"github.com/redbco/mlregistry/internal/schema"
	"github.com/redbco/mlregistry/pkg/logger"
	"github.com/spf13/cobra"
)

// session is the configuration, logger and open connection of one command.
type session struct {
	cfg    *config.Config
	log    *logger.Logger
	conn   *bqconn.Connector
	writer *registry.Writer
}

func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	log := logger.New("mlregistry", Version)
	log.SetLevel(cfg.LogLevel)
	return cfg, log, nil
}

// openSession loads the config and connects to the warehouse.
func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := bqconn.Open(ctx, connConfig(cfg), log)
	if err != nil {
		return nil, err
	}

	opts := []registry.Option{registry.WithLogger(log)}
	if cfg.StrictFeatureImportance {
		opts = append(opts, registry.WithStrictFeatureImportance())
	}
	return &session{
		cfg:    cfg,
		log:    log,
		conn:   conn,
		writer: registry.New(conn, cfg.TableRef(), opts...),
	}, nil
}

func connConfig(cfg *config.Config) bqconn.Config {
	return bqconn.Config{
		ProjectID:           cfg.Project,
		CredentialsFile:     cfg.CredentialsFile,
		Location:            cfg.Location,
		SkipPermissionCheck: cfg.SkipPermissionCheck,
	}
}

func (s *session) Close() {
	if err := s.conn.Close(); err != nil {
		s.log.Warnf("failed to close connection: %v", err)
	}
}

// modelAddress resolves MODEL, DATASET.MODEL or PROJECT.DATASET.MODEL
// against the configured project and dataset.
func modelAddress(arg string, cfg *config.Config) (connector.ModelRef, error) {
	parts := strings.Split(strings.Trim(arg, "`"), ".")
	ref := connector.ModelRef{Project: cfg.Project, Dataset: cfg.Dataset}
	switch len(parts) {
	case 1:
		ref.ModelID = parts[0]
	case 2:
		ref.Dataset, ref.ModelID = parts[0], parts[1]
	case 3:
		ref.Project, ref.Dataset, ref.ModelID = parts[0], parts[1], parts[2]
	default:
		return ref, fmt.Errorf("%w: invalid model address %q", connector.ErrInvalidConfiguration, arg)
	}
	for _, p := range parts {
		if p == "" {
			return ref, fmt.Errorf("%w: invalid model address %q", connector.ErrInvalidConfiguration, arg)
		}
	}
	return ref, nil
}

// render writes v as indented JSON or YAML.
func render(w io.Writer, v interface{}, format string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	switch format {
	case "", "json":
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		out, err := schema.JSONToYAML(data)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
