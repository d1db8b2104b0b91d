package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/redbco/mlregistry/internal/connector"
	"google.golang.org/api/iterator"
)

// Query executes a parameterized query and returns all rows with column
// order preserved.
func (c *Connector) Query(ctx context.Context, sql string, params ...connector.Param) (*connector.Result, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	q := c.client.Query(sql)
	if c.location != "" {
		q.Location = c.location
	}
	for _, p := range params {
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{
			Name:  p.Name,
			Value: p.Value,
		})
	}

	c.logger.Debug("executing query with %d parameters", len(params))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	result := &connector.Result{}
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		values := make([]connector.Value, len(row))
		for i, v := range row {
			values[i] = connector.ParseValue(v)
		}
		result.Rows = append(result.Rows, values)
	}

	result.Columns = columnNames(it.Schema)
	return result, nil
}

// columnNames returns the top-level field names of a result schema.
func columnNames(schema bigquery.Schema) []string {
	names := make([]string, 0, len(schema))
	for _, f := range schema {
		names = append(names, f.Name)
	}
	return names
}

// InsertRow appends a single row through the streaming inserter. Row-level
// failures come back as bigquery.PutMultiError inside the returned error.
func (c *Connector) InsertRow(ctx context.Context, ref connector.TableRef, row bigquery.ValueSaver) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	inserter := c.table(ref).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", connector.ErrTableNotFound, ref)
		}
		return connector.WrapError("insert row into", ref.String(), err)
	}
	return nil
}
