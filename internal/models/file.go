// Package models defines the records synchronized by drivesync: drive files
// and folders, notes with embedded checklists, and breadcrumb entries.
package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/drivesync/internal/common"
)

// FileKind classifies a FileRecord.
type FileKind string

const (
	KindFolder   FileKind = "folder"
	KindDocument FileKind = "document"
	KindImage    FileKind = "image"
	KindVideo    FileKind = "video"
)

// KindFromMimeType maps an uploaded payload's MIME type to its kind.
// Anything that is neither image/* nor video/* is a document.
func KindFromMimeType(mimeType string) FileKind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	default:
		return KindDocument
	}
}

// FileRecord is a node of an owner's drive tree.
//
// Folders never carry BlobURL or Content. Documents created in place carry
// inline Content; uploaded payloads carry a BlobURL instead.
type FileRecord struct {
	ID           string    `json:"-"`
	Name         string    `json:"name"`
	Kind         FileKind  `json:"kind"`
	Content      string    `json:"content,omitempty"`
	BlobURL      string    `json:"blobUrl,omitempty"`
	MimeType     string    `json:"mimeType,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	OwnerID      string    `json:"ownerId"`
	ParentID     *string   `json:"parentId"`
	SizeBytes    int64     `json:"sizeBytes,omitempty"`
	IsStarred    bool      `json:"isStarred"`
	IsShared     bool      `json:"isShared"`
	SharedWith   []string  `json:"sharedWith,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (f FileRecord) IsFolder() bool { return f.Kind == KindFolder }

// Breadcrumb is one step of the path from the root to the current folder.
type Breadcrumb struct {
	ID   string
	Name string
}

// RootBreadcrumb is the synthetic first entry of every trail.
func RootBreadcrumb() Breadcrumb {
	return Breadcrumb{ID: common.RootFolderID, Name: common.RootFolderName}
}
