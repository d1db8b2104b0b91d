package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/redbco/mlregistry/internal/connector"
)

func (c *Connector) table(ref connector.TableRef) *bigquery.Table {
	return c.client.DatasetInProject(ref.Project, ref.Dataset).Table(ref.TableID)
}

// TableExists reports whether the table exists.
func (c *Connector) TableExists(ctx context.Context, ref connector.TableRef) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}

	_, err := c.table(ref).Metadata(ctx)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, connector.WrapError("get table", ref.String(), err)
}

// CreateTable creates the table with the given schema.
func (c *Connector) CreateTable(ctx context.Context, ref connector.TableRef, schema bigquery.Schema) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	err := c.table(ref).Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", ref, err)
	}
	return nil
}

// DeleteTable deletes the table.
func (c *Connector) DeleteTable(ctx context.Context, ref connector.TableRef) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	if err := c.table(ref).Delete(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", connector.ErrTableNotFound, ref)
		}
		return fmt.Errorf("failed to delete table %s: %w", ref, err)
	}
	return nil
}

// TableSchema retrieves the live schema of the table.
func (c *Connector) TableSchema(ctx context.Context, ref connector.TableRef) (bigquery.Schema, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	metadata, err := c.table(ref).Metadata(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", connector.ErrTableNotFound, ref)
		}
		return nil, fmt.Errorf("failed to get table metadata: %w", err)
	}
	return metadata.Schema, nil
}
