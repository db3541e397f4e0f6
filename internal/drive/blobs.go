package drive

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"
)

// blobPath qualifies name with the owner and a millisecond timestamp so
// repeated uploads of the same name never collide.
func (d *Drive) blobPath(owner, name string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return fmt.Sprintf("users/%s/%d_%s", owner, d.now().UnixMilli(), safe)
}

func checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// UploadFile stores data in the blob store and then records it under
// parentID (nil for the root).
//
// If the blob put fails nothing is recorded. If the record insert fails the
// blob stays behind and a *common.PartialCoordinationError names it. Each
// call writes a new blob path, so retrying blindly duplicates payloads.
func (d *Drive) UploadFile(ctx context.Context, data []byte, name, mimeType string, parentID *string) (string, error) {
	owner, err := d.requireOwner()
	if err != nil {
		return "", err
	}
	name, err = cleanName(name)
	if err != nil {
		return "", err
	}

	kind := models.KindFromMimeType(mimeType)
	path := d.blobPath(owner, name)

	ctx, span := tracer.Start(ctx, "drive.upload_file",
		trace.WithAttributes(
			attribute.String("owner", owner),
			attribute.String("kind", string(kind)),
			attribute.String("blob_path", path),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	url, err := d.putBlob(ctx, path, data, mimeType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "blob put failed")
		return "", fmt.Errorf("upload %s: %w", name, err)
	}

	id, err := d.insert(ctx, models.FileRecord{
		Name:      name,
		Kind:      kind,
		BlobURL:   url,
		MimeType:  mimeType,
		Checksum:  checksum(data),
		OwnerID:   owner,
		ParentID:  parentID,
		SizeBytes: int64(len(data)),
	})
	if err != nil {
		perr := &common.PartialCoordinationError{Op: "upload", Stage: "metadata", BlobPath: path, Err: err}
		span.RecordError(perr)
		span.SetStatus(codes.Error, "metadata insert failed")
		d.log.Warn(ctx, "upload left an orphaned blob", "blob_path", path, "error", err)
		return "", perr
	}

	span.SetAttributes(attribute.String("record_id", id))
	d.log.Info(ctx, "file uploaded", "id", id, "name", name, "kind", kind)
	return id, nil
}

func (d *Drive) putBlob(ctx context.Context, path string, data []byte, mimeType string) (string, error) {
	ctx, span := tracer.Start(ctx, "drive.blob_put")
	defer span.End()

	url, err := d.blobs.Put(ctx, path, data, mimeType)
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, common.ErrBlobStore) {
			err = fmt.Errorf("%w: %w", common.ErrBlobStore, err)
		}
		return "", err
	}
	return url, nil
}

// DeleteFile removes the record and then its blob, if it has one. A missing
// record is not an error.
//
// When the record is gone but the blob could not be removed, the returned
// error is a *common.PartialCoordinationError with Stage "blob": the file
// is deleted as far as every session can see, and only the payload is
// orphaned. Folders are removed alone; their children stay in place.
func (d *Drive) DeleteFile(ctx context.Context, id string) error {
	if _, err := d.requireOwner(); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "drive.delete_file", trace.WithAttributes(attribute.String("record_id", id)))
	defer span.End()

	rec, err := d.store.Get(ctx, common.FilesCollection, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete %s: %w", id, err)
	}
	f, err := models.DecodeFile(rec)
	if err != nil {
		return err
	}

	if err := d.files.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}

	if f.IsFolder() || f.BlobURL == "" {
		return nil
	}

	path, err := d.blobs.PathFromURL(f.BlobURL)
	if err == nil {
		err = d.deleteBlob(ctx, path)
	} else {
		path = f.BlobURL
	}
	if err != nil {
		perr := &common.PartialCoordinationError{Op: "delete", Stage: "blob", BlobPath: path, RecordID: id, Err: err}
		span.RecordError(perr)
		span.SetStatus(codes.Error, "blob cleanup failed")
		d.log.Warn(ctx, "blob cleanup failed after delete", "id", id, "blob_path", path, "error", err)
		return perr
	}
	return nil
}

func (d *Drive) deleteBlob(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "drive.blob_delete", trace.WithAttributes(attribute.String("blob_path", path)))
	defer span.End()

	if err := d.blobs.Delete(ctx, path); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
