package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"cloud.google.com/go/bigquery"
	"github.com/redbco/mlregistry/internal/connector"
	"github.com/redbco/mlregistry/pkg/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Config holds what is needed to open a warehouse connection.
type Config struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
	Location        string

	// SkipPermissionCheck disables the IAM check done when opening.
	SkipPermissionCheck bool

	// RequiredPermissions defaults to RequiredPermissions when empty.
	RequiredPermissions []string
}

// Connector implements connector.Connector on top of the BigQuery client.
type Connector struct {
	client    *bigquery.Client
	http      *http.Client
	endpoint  string
	projectID string
	location  string
	logger    *logger.Logger
	connected int32
}

var _ connector.Connector = (*Connector)(nil)

// ClientOptions builds credential options from the config.
func ClientOptions(cfg Config) []option.ClientOption {
	var opts []option.ClientOption

	// Add credentials if provided
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	} else if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	return opts
}

// Open creates the BigQuery client and, unless disabled, verifies that the
// credentials hold every required permission on the project. A missing
// permission fails here rather than midway through a registry operation.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Connector, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: project id is required", connector.ErrInvalidConfiguration)
	}
	if log == nil {
		log = logger.Discard()
	}

	opts := ClientOptions(cfg)

	// Create BigQuery client
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}

	hc, err := newCatalogClient(ctx, opts)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	c := &Connector{
		client:    client,
		http:      hc,
		endpoint:  defaultEndpoint,
		projectID: cfg.ProjectID,
		location:  cfg.Location,
		logger:    log,
		connected: 1,
	}

	if cfg.SkipPermissionCheck {
		log.Warn("skipping permission check for project %s", cfg.ProjectID)
		return c, nil
	}

	required := cfg.RequiredPermissions
	if len(required) == 0 {
		required = RequiredPermissions
	}
	tester, err := newResourceManagerTester(ctx, opts)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := CheckPermissions(ctx, tester, cfg.ProjectID, required); err != nil {
		_ = client.Close()
		return nil, err
	}
	log.Debug("permission check passed for project %s", cfg.ProjectID)

	return c, nil
}

// ProjectID returns the project the client bills queries to.
func (c *Connector) ProjectID() string {
	return c.projectID
}

// Client returns the underlying BigQuery client.
func (c *Connector) Client() *bigquery.Client {
	return c.client
}

// IsConnected returns whether the connector is open.
func (c *Connector) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Close closes the BigQuery client.
func (c *Connector) Close() error {
	if !atomic.CompareAndSwapInt32(&c.connected, 1, 0) {
		return connector.ErrConnectionClosed
	}
	return c.client.Close()
}

func (c *Connector) checkOpen() error {
	if !c.IsConnected() {
		return connector.ErrConnectionClosed
	}
	return nil
}

// isNotFound reports whether err is a 404 from the BigQuery API.
func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
