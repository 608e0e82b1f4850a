// Package notify delivers the side effects of a sync run: new-transaction
// notifications and cache invalidation.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/dvloznov/bank-sync/internal/logger"
	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"
)

// NotionNotifier appends newly synced transactions to a Notion database that
// acts as the team's transaction feed.
type NotionNotifier struct {
	service    NotionService
	databaseID string
	limiter    *rate.Limiter
}

// NewNotionNotifier creates a NotionNotifier writing to databaseID. The
// limiter paces page creation; nil means unlimited.
func NewNotionNotifier(service NotionService, databaseID string, limiter *rate.Limiter) *NotionNotifier {
	return &NotionNotifier{service: service, databaseID: databaseID, limiter: limiter}
}

// NotifyTransactions creates one page per transaction not yet in the feed.
// A failed page is logged and the rest are still written; the joined errors
// are returned.
func (n *NotionNotifier) NotifyTransactions(ctx context.Context, teamID string, txs []domain.Transaction) error {
	log := logger.FromContext(ctx)

	existing, err := n.existingInternalIDs(ctx, teamID)
	if err != nil {
		return fmt.Errorf("NotifyTransactions: %w", err)
	}

	var (
		created, skipped int
		errs             []error
	)
	for _, tx := range txs {
		if existing[tx.InternalID] {
			skipped++
			continue
		}
		if n.limiter != nil {
			if err := n.limiter.Wait(ctx); err != nil {
				errs = append(errs, err)
				break
			}
		}

		page, err := n.service.CreatePage(ctx, n.databaseID, TransactionToNotionProperties(tx))
		if err != nil {
			log.Warn().
				Err(err).
				Str("internal_id", tx.InternalID).
				Msg("Failed to create Notion page")
			errs = append(errs, err)
			continue
		}
		existing[tx.InternalID] = true
		created++
		log.Debug().
			Str("internal_id", tx.InternalID).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page")
	}

	log.Info().
		Int("created", created).
		Int("skipped", skipped).
		Int("failed", len(errs)).
		Msg("Notion notification completed")

	if len(errs) > 0 {
		return fmt.Errorf("NotifyTransactions: %w", errors.Join(errs...))
	}
	return nil
}

// existingInternalIDs returns the internal ids already in the feed for the
// team. Handles pagination.
func (n *NotionNotifier) existingInternalIDs(ctx context.Context, teamID string) (map[string]bool, error) {
	ids := make(map[string]bool)
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter: &notionapi.PropertyFilter{
				Property: PropTeam,
				RichText: &notionapi.TextFilterCondition{Equals: teamID},
			},
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := n.service.QueryDatabase(ctx, n.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("querying existing pages: %w", err)
		}
		for _, page := range resp.Results {
			if id := extractInternalID(page); id != "" {
				ids[id] = true
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return ids, nil
}

// LogNotifier writes a summary of new transactions to the context logger.
type LogNotifier struct{}

// NotifyTransactions logs the number and total of new transactions.
func (LogNotifier) NotifyTransactions(ctx context.Context, teamID string, txs []domain.Transaction) error {
	accounts := make(map[string]int)
	for _, tx := range txs {
		accounts[tx.BankAccountID]++
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("team_id", teamID).
		Int("transactions", len(txs)).
		Int("accounts", len(accounts)).
		Msg("New transactions synced")
	return nil
}

// Notifier is satisfied by every notifier in this package.
type Notifier interface {
	NotifyTransactions(ctx context.Context, teamID string, txs []domain.Transaction) error
}

// Multi fans a notification out to several notifiers. All are called even
// when one fails.
type Multi []Notifier

// NotifyTransactions calls every notifier in order.
func (m Multi) NotifyTransactions(ctx context.Context, teamID string, txs []domain.Transaction) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyTransactions(ctx, teamID, txs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
