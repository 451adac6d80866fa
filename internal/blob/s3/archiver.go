package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// SnapshotArchiveStore provides read and delete access to risk snapshots
// for archival purposes. The Postgres snapshot store satisfies this
// implicitly.
type SnapshotArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.RiskSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditArchiveStore provides read access to audit entries for archival
// purposes. Audit entries are append-only and are never deleted from the
// primary store.
type AuditArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error)
}

// Payloads at or above multipartThreshold go through the multipart upload
// path so a month of snapshots does not hold a single PutObject request
// open; anything smaller uploads in one shot.
const (
	multipartThreshold = 16 << 20
	multipartPartSize  = 8 << 20
)

// ArchiveImpl implements domain.Archiver by querying the stores for old
// records, serializing them to JSONL, and uploading the result to S3.
// Archived snapshots are pruned from the primary store only after the
// upload succeeded.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	snapshots SnapshotArchiveStore
	audit     AuditArchiveStore
	auditLog  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	snapshots SnapshotArchiveStore,
	audit AuditArchiveStore,
	auditLog domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		snapshots: snapshots,
		audit:     audit,
		auditLog:  auditLog,
	}
}

// ArchiveSnapshots moves all risk snapshots created before the cutoff to
// S3 at archive/snapshots/YYYY-MM.jsonl, deletes them from the primary
// store, records the archival in the audit log and returns the count of
// archived records.
func (a *ArchiveImpl) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	snaps, err := a.snapshots.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots query: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(snaps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
	}

	path := archivePath("snapshots", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
	}

	deleted, err := a.snapshots.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(snaps)), fmt.Errorf("s3blob: archive snapshots prune: %w", err)
	}

	count := int64(len(snaps))
	if err := a.auditLog.Log(ctx, "archive.snapshots", map[string]any{
		"path":    path,
		"count":   count,
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive snapshots audit log: %w", err)
	}

	return count, nil
}

// ArchiveAuditLog copies all audit entries created before the cutoff to
// S3 at archive/audit/YYYY-MM.jsonl. Entries stay in the primary store;
// the audit log is append-only. The archival itself is audit-logged and
// the count of archived records is returned.
func (a *ArchiveImpl) ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	count := int64(len(entries))
	if err := a.auditLog.Log(ctx, "archive.audit", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive audit audit log: %w", err)
	}

	return count, nil
}

// upload writes a JSONL buffer to the given key, picking the single-shot
// or multipart path based on the payload size.
func (a *ArchiveImpl) upload(ctx context.Context, path string, buf []byte) error {
	if int64(len(buf)) >= multipartThreshold {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), multipartPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/snapshots/2026-08.jsonl
//	archive/audit/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
// Each element is marshalled as a single compact JSON line followed by
// '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
