// Package archive writes point-in-time snapshots of an owner's obligations
// and execution history to object storage for the reports view.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/analytics"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/history"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
	"github.com/personalfinance/finance/backend/go-scheduler/pkg/logger"
)

// ErrSnapshotNotFound is returned by Load for a key that holds no snapshot.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Uploader is the object store an Exporter writes to.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Source supplies the data of one owner.
type Source interface {
	Snapshot(ctx context.Context, ownerID string) ([]obligation.Obligation, error)
	History(ctx context.Context, ownerID string, f history.Filter) ([]obligation.Occurrence, error)
}

// Snapshot is the exported document.
type Snapshot struct {
	OwnerID     string                  `json:"ownerId"`
	GeneratedAt time.Time               `json:"generatedAt"`
	Obligations []obligation.Obligation `json:"obligations"`
	History     []obligation.Occurrence `json:"history"`
	Report      analytics.Report        `json:"report"`
	Paid        history.Summary         `json:"paid"`
}

// Receipt tells the caller where the snapshot went.
type Receipt struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Obligations int       `json:"obligations"`
	Occurrences int       `json:"occurrences"`
}

type Exporter struct {
	src Source
	up  Uploader
	ttl time.Duration
	now func() time.Time
}

// NewExporter builds an Exporter whose download links live for ttl
// (15 minutes when ttl is not positive).
func NewExporter(src Source, up Uploader, ttl time.Duration) *Exporter {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Exporter{src: src, up: up, ttl: ttl, now: time.Now}
}

// Key is the object key of an owner's snapshot taken at t.
func Key(ownerID string, t time.Time) string {
	return fmt.Sprintf("%s%s.json", keyPrefix(ownerID), t.UTC().Format("20060102T150405Z"))
}

func keyPrefix(ownerID string) string { return "exports/" + ownerID + "/" }

// OwnsKey reports whether key is one of ownerID's snapshots.
func OwnsKey(ownerID, key string) bool {
	rest, ok := strings.CutPrefix(key, keyPrefix(ownerID))
	return ok && ownerID != "" && rest != "" && !strings.Contains(rest, "/")
}

func (e *Exporter) Export(ctx context.Context, ownerID string) (Receipt, error) {
	obs, err := e.src.Snapshot(ctx, ownerID)
	if err != nil {
		return Receipt{}, err
	}
	occs, err := e.src.History(ctx, ownerID, history.Filter{})
	if err != nil {
		return Receipt{}, err
	}
	now := e.now().UTC()
	snap := Snapshot{
		OwnerID:     ownerID,
		GeneratedAt: now,
		Obligations: obs,
		History:     occs,
		Report:      analytics.Summarize(obs, obligation.DateOf(now), analytics.Options{}),
		Paid:        history.Summarize(occs),
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Receipt{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := Key(ownerID, now)
	if err := e.up.Upload(ctx, key, body, "application/json"); err != nil {
		return Receipt{}, fmt.Errorf("upload %s: %w", key, err)
	}
	url, err := e.up.PresignGet(ctx, key, e.ttl)
	if err != nil {
		return Receipt{}, fmt.Errorf("presign %s: %w", key, err)
	}
	logger.Infow("snapshot exported", logger.Fields{"owner": ownerID, "key": key, "bytes": len(body)})
	return Receipt{
		Key:         key,
		URL:         url,
		ExpiresAt:   now.Add(e.ttl),
		Obligations: len(obs),
		Occurrences: len(occs),
	}, nil
}

// Load reads a previously exported snapshot back.
func (e *Exporter) Load(ctx context.Context, key string) (Snapshot, error) {
	rc, err := e.up.Download(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	defer rc.Close()
	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return snap, nil
}
