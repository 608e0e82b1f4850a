package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

// EnsureSchemaWithClient creates the dataset and tables if they do not
// exist, using schemas inferred from the row types. Nullable columns added to
// a row type since a table was created are appended to it.
func EnsureSchemaWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) error {
	dataset := client.DatasetInProject(ds.Project, ds.Name)
	if err := dataset.Create(ctx, &bigquery.DatasetMetadata{}); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("EnsureSchemaWithClient: creating dataset %s: %w", ds.Name, err)
	}

	tables := []struct {
		name string
		row  interface{}
	}{
		{connectionsTable, ConnectionRow{}},
		{accountsTable, AccountRow{}},
		{transactionsTable, TransactionRow{}},
	}
	for _, t := range tables {
		schema, err := bigquery.InferSchema(t.row)
		if err != nil {
			return fmt.Errorf("EnsureSchemaWithClient: inferring %s schema: %w", t.name, err)
		}
		meta := &bigquery.TableMetadata{Schema: schema}
		if t.name == transactionsTable {
			meta.TimePartitioning = &bigquery.TimePartitioning{Field: "transaction_date"}
			meta.Clustering = &bigquery.Clustering{Fields: []string{"team_id", "internal_id"}}
		}
		table := dataset.Table(t.name)
		err = table.Create(ctx, meta)
		if err == nil {
			continue
		}
		if !isAlreadyExists(err) {
			return fmt.Errorf("EnsureSchemaWithClient: creating table %s: %w", t.name, err)
		}
		if err := addMissingColumns(ctx, table, schema); err != nil {
			return fmt.Errorf("EnsureSchemaWithClient: updating table %s: %w", t.name, err)
		}
	}
	return nil
}

func addMissingColumns(ctx context.Context, table *bigquery.Table, want bigquery.Schema) error {
	md, err := table.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("reading metadata: %w", err)
	}
	missing := missingColumns(md.Schema, want)
	if len(missing) == 0 {
		return nil
	}
	schema := append(md.Schema, missing...)
	if _, err := table.Update(ctx, bigquery.TableMetadataToUpdate{Schema: schema}, md.ETag); err != nil {
		return fmt.Errorf("adding columns: %w", err)
	}
	return nil
}

// missingColumns returns the optional fields of want absent from have.
// Required columns cannot be added to an existing table.
func missingColumns(have, want bigquery.Schema) bigquery.Schema {
	existing := make(map[string]bool, len(have))
	for _, f := range have {
		existing[f.Name] = true
	}
	var out bigquery.Schema
	for _, f := range want {
		if !existing[f.Name] && !f.Required {
			out = append(out, f)
		}
	}
	return out
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
