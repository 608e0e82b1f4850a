package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bank-sync/internal/domain"
	"google.golang.org/api/iterator"
)

// UpsertTransactionsWithClient inserts the transactions whose internal_id is
// not stored yet, using the provided BigQuery client. Existing rows are left
// untouched.
//
// The existence check and the streaming insert are two requests, so two
// processes syncing the same connection at once can both insert a row. The
// internal_id insert id only deduplicates retries of the same insert, on a
// best-effort basis. Readers that need exact uniqueness should select the
// first row per internal_id.
func UpsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, txs []domain.Transaction, now time.Time) ([]domain.Transaction, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	existing, err := existingInternalIDs(ctx, client, ds, txs)
	if err != nil {
		return nil, fmt.Errorf("UpsertTransactionsWithClient: %w", err)
	}

	var (
		inserted []domain.Transaction
		savers   []*bigquery.StructSaver
	)
	for _, tx := range txs {
		if existing[tx.InternalID] {
			continue
		}
		existing[tx.InternalID] = true
		inserted = append(inserted, tx)
		savers = append(savers, newTransactionSaver(tx, now))
	}
	if len(savers) == 0 {
		return nil, nil
	}

	inserter := client.DatasetInProject(ds.Project, ds.Name).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, savers); err != nil {
		return nil, fmt.Errorf("UpsertTransactionsWithClient: inserting rows: %w", err)
	}
	return inserted, nil
}

// newTransactionSaver keys the streaming insert by internal_id.
func newTransactionSaver(tx domain.Transaction, now time.Time) *bigquery.StructSaver {
	return &bigquery.StructSaver{
		Struct:   newTransactionRow(tx, now),
		InsertID: tx.InternalID,
	}
}

func existingInternalIDs(ctx context.Context, client *bigquery.Client, ds Dataset, txs []domain.Transaction) (map[string]bool, error) {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.InternalID
	}

	q := client.Query(fmt.Sprintf(`
		SELECT internal_id
		FROM %s
		WHERE internal_id IN UNNEST(@ids)
	`, ds.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "ids", Value: ids},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading existing ids: %w", err)
	}

	existing := make(map[string]bool, len(txs))
	for {
		var row struct {
			InternalID string `bigquery:"internal_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating existing ids: %w", err)
		}
		existing[row.InternalID] = true
	}
	return existing, nil
}
