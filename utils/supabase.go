package utils

import (
	"fmt"
	"io"
	"path/filepath"

	storage "github.com/supabase-community/storage-go"
)

// SupabaseStorage uploads group covers to a public bucket.
type SupabaseStorage struct {
	client *storage.Client
	bucket string
}

func NewSupabaseStorage(url, key, bucket string) *SupabaseStorage {
	return &SupabaseStorage{
		client: storage.NewClient(url+"/storage/v1", key, nil),
		bucket: bucket,
	}
}

// Upload stores r under folder/objectID<ext of filename> and returns its public URL.
func (s *SupabaseStorage) Upload(folder, objectID, filename, contentType string, r io.Reader) (string, error) {
	objectPath := fmt.Sprintf("%s%s", objectID, filepath.Ext(filename))
	if folder != "" {
		objectPath = fmt.Sprintf("%s/%s", folder, objectPath)
	}

	upsert := true
	options := storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}

	if _, err := s.client.UploadFile(s.bucket, objectPath, r, options); err != nil {
		return "", err
	}

	publicURL := s.client.GetPublicUrl(s.bucket, objectPath)
	return publicURL.SignedURL, nil
}
