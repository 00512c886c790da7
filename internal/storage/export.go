package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/pkg/logger"
)

// ObjectStore is the part of MinIOStorage the exporter needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// IssueExporter writes an issue's eligibility set as JSON for the layout
// tool. Objects land under issues/<issueID>/eligible.json and are replaced
// on every export.
type IssueExporter struct {
	store      ObjectStore
	presignTTL time.Duration
	now        func() time.Time
}

func NewIssueExporter(store ObjectStore, presignTTL time.Duration) *IssueExporter {
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}
	return &IssueExporter{store: store, presignTTL: presignTTL, now: time.Now}
}

type issueDocument struct {
	IssueID    string            `json:"issueId"`
	ExportedAt time.Time         `json:"exportedAt"`
	Count      int               `json:"count"`
	Items      []*content.Object `json:"items"`
}

// IssueKey is the object key an issue export is written to.
func IssueKey(issueID string) string {
	return path.Join("issues", issueID, "eligible.json")
}

func (e *IssueExporter) ExportIssue(ctx context.Context, issueID string, items []*content.Object) (string, error) {
	if items == nil {
		items = []*content.Object{}
	}
	body, err := json.Marshal(issueDocument{
		IssueID:    issueID,
		ExportedAt: e.now().UTC(),
		Count:      len(items),
		Items:      items,
	})
	if err != nil {
		return "", fmt.Errorf("encode issue: %w", err)
	}
	key := IssueKey(issueID)
	if err := e.store.PutObject(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	u, err := e.store.PresignedURL(ctx, key, e.presignTTL)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	logger.Debugf("issue export written to %s (%d bytes)", key, len(body))
	return u, nil
}
