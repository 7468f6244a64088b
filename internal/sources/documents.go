package sources

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pharmintel/pharmawatch/internal/storage"
)

// BlobDocumentStore keeps uploaded session documents in blob storage. Blob
// names embed a zero-padded nanosecond timestamp so lexicographic order is
// chronological and "latest" needs no metadata reads.
type BlobDocumentStore struct {
	storage storage.StorageInterface
}

var _ DocumentSource = (*BlobDocumentStore)(nil)

// NewBlobDocumentStore creates a document store on top of a blob storage
// backend.
func NewBlobDocumentStore(backend storage.StorageInterface) *BlobDocumentStore {
	return &BlobDocumentStore{storage: backend}
}

func documentPrefix(sessionID string) string {
	return fmt.Sprintf("sessions/%s/documents/", sessionID)
}

// UploadDocument stores a raw document text for a session and returns the
// document's blob name.
func (d *BlobDocumentStore) UploadDocument(sessionID, text string) (string, error) {
	name := fmt.Sprintf("%s%020d-%s.txt", documentPrefix(sessionID), time.Now().UTC().UnixNano(), uuid.NewString())
	if err := d.storage.Store(name, []byte(text)); err != nil {
		return "", fmt.Errorf("failed to store document for session %s: %w", sessionID, err)
	}
	return name, nil
}

// GetUploadedDocumentText returns the text of the most recently uploaded
// document for a session, or ErrNoDocument when none exists.
func (d *BlobDocumentStore) GetUploadedDocumentText(_ context.Context, sessionID string) (string, error) {
	names, err := d.storage.List(documentPrefix(sessionID))
	if err != nil {
		return "", fmt.Errorf("failed to list documents for session %s: %w", sessionID, err)
	}
	if len(names) == 0 {
		return "", ErrNoDocument
	}

	sort.Strings(names)
	data, err := d.storage.Retrieve(names[len(names)-1])
	if err != nil {
		return "", fmt.Errorf("failed to read document %s: %w", names[len(names)-1], err)
	}
	return string(data), nil
}
