package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bank-sync/internal/domain"
	"google.golang.org/api/iterator"
)

// SetConnectionStatusWithClient sets a connection's status and error details
// using the provided BigQuery client. Nil details clear the column.
func SetConnectionStatusWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, connectionID string, status domain.ConnectionStatus, errorDetails *string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    error_details = @error_details
		WHERE connection_id = @connection_id
	`, ds.table(connectionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "connection_id", Value: connectionID},
		{Name: "status", Value: string(status)},
		{Name: "error_details", Value: nullString(errorDetails)},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("SetConnectionStatusWithClient: %w", err)
	}
	return nil
}

// TouchConnectionWithClient sets last_accessed using the provided BigQuery
// client.
func TouchConnectionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, connectionID string, at time.Time) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET last_accessed = @last_accessed
		WHERE connection_id = @connection_id
	`, ds.table(connectionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "connection_id", Value: connectionID},
		{Name: "last_accessed", Value: at},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("TouchConnectionWithClient: %w", err)
	}
	return nil
}

// ListSyncableConnectionsWithClient lists connections that are not
// disconnected using the provided BigQuery client.
func ListSyncableConnectionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]domain.ConnectionRef, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT connection_id, team_id
		FROM %s
		WHERE status != 'disconnected'
		ORDER BY connection_id
	`, ds.table(connectionsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSyncableConnectionsWithClient: reading query: %w", err)
	}

	var refs []domain.ConnectionRef
	for {
		var row struct {
			ConnectionID string `bigquery:"connection_id"`
			TeamID       string `bigquery:"team_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListSyncableConnectionsWithClient: iterating: %w", err)
		}
		refs = append(refs, domain.ConnectionRef{ConnectionID: row.ConnectionID, TeamID: row.TeamID})
	}
	return refs, nil
}
