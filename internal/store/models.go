package store

import (
	"errors"
	"time"
)

// ErrNotFound reports a lookup that matched no row.
var ErrNotFound = errors.New("store: not found")

// Document is one persisted writing document. HTML is the serialized
// editor content; the git history keeps prior revisions.
type Document struct {
	ID        string
	Title     string
	HTML      string
	UpdatedAt time.Time
	CreatedAt time.Time
}

// FileMeta is the metadata row for one uploaded object. The bytes live
// in object storage under StoredName; ExtractedText is filled for
// formats we can read (txt, md, pdf).
type FileMeta struct {
	ID            string
	OriginalName  string
	StoredName    string
	MimeType      string
	Size          int64
	Ext           string
	ExtractedText string
	CreatedAt     time.Time
}
