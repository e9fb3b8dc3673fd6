package supabase

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

// StorageClient archives evidence photos in a Supabase Storage bucket.
type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceKey, bucket string) *StorageClient {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	return &StorageClient{
		client:  storage.NewClient(baseURL+"/storage/v1", serviceKey, nil),
		bucket:  bucket,
		baseURL: baseURL,
	}
}

// UploadEvidence stores data under users/{user_id}/evidence/{uuid}.{ext}.
func (s *StorageClient) UploadEvidence(userID, ext, contentType string, data []byte) (string, string, error) {
	storagePath := EvidencePath(userID, uuid.New(), ext)

	upsert := false
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload evidence: %w", err)
	}

	return storagePath, s.PublicURL(storagePath), nil
}

func (s *StorageClient) PublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, storagePath)
}

func EvidencePath(userID string, id uuid.UUID, ext string) string {
	return fmt.Sprintf("users/%s/evidence/%s.%s", userID, id.String(), ext)
}
