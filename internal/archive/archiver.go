// Package archive keeps the raw provider pages read by a sync run in Cloud
// Storage, one JSON object per page.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/dvloznov/bank-sync/internal/logger"
	"github.com/dvloznov/bank-sync/internal/provider"
	"github.com/dvloznov/bank-sync/internal/syncjob"
)

const contentTypeJSON = "application/json"

// PageArchiver writes provider pages to an ObjectStore.
type PageArchiver struct {
	store  ObjectStore
	bucket string
	prefix string
}

// NewPageArchiver creates an archiver writing under bucket/prefix.
func NewPageArchiver(store ObjectStore, bucket, prefix string) *PageArchiver {
	return &PageArchiver{store: store, bucket: bucket, prefix: prefix}
}

// ObjectName returns the object path for a page:
// <prefix>/<team>/<connection>/<account>/<UTC timestamp>-page-<n>.json.
func (a *PageArchiver) ObjectName(ref syncjob.PageRef) string {
	name := fmt.Sprintf("%s-page-%04d.json", ref.FetchedAt.UTC().Format("20060102T150405Z"), ref.Page)
	return path.Join(a.prefix, ref.TeamID, ref.ConnectionID, ref.AccountID, name)
}

// ArchivePage stores the page as JSON.
func (a *PageArchiver) ArchivePage(ctx context.Context, ref syncjob.PageRef, page *provider.TransactionsPage) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("ArchivePage: encoding page: %w", err)
	}

	object := a.ObjectName(ref)
	if err := a.store.WriteObject(ctx, a.bucket, object, contentTypeJSON, data); err != nil {
		return fmt.Errorf("ArchivePage: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("uri", URI(a.bucket, object)).
		Int("transactions", len(page.Data)).
		Msg("Archived provider page")
	return nil
}

// ReadPage loads an archived page back, for replaying a sync offline.
func (a *PageArchiver) ReadPage(ctx context.Context, uri string) (*provider.TransactionsPage, error) {
	data, err := a.store.ReadObject(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("ReadPage: %w", err)
	}

	var page provider.TransactionsPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("ReadPage: decoding %s: %w", uri, err)
	}
	return &page, nil
}

// FetchedAtFromName is the inverse of the timestamp part of ObjectName.
func FetchedAtFromName(object string) (time.Time, error) {
	base := path.Base(object)
	if len(base) < len("20060102T150405Z") {
		return time.Time{}, fmt.Errorf("FetchedAtFromName: unexpected object name %q", object)
	}
	t, err := time.Parse("20060102T150405Z", base[:len("20060102T150405Z")])
	if err != nil {
		return time.Time{}, fmt.Errorf("FetchedAtFromName: %w", err)
	}
	return t, nil
}
