package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobStorage streams blobs from Azure Blob Storage
type BlobStorage interface {
	GetImage(ctx context.Context, blobURL string, dst io.Writer) (int64, error)
}

type azureStorage struct {
	client   *azblob.Client
	maxBytes int64
}

// NewAzureStorage creates a shared-key client for the given account
func NewAzureStorage(accountName string, accountKey string, maxBytes int64) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &azureStorage{client: client, maxBytes: maxBytes}, nil
}

// ParseBlobURL splits azblob://container/path/to/blob into its parts
func ParseBlobURL(blobURL string) (container, blob string, err error) {
	parsedURL, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}
	if parsedURL.Scheme != "azblob" {
		return "", "", fmt.Errorf("invalid blob URL scheme %q", parsedURL.Scheme)
	}

	container = parsedURL.Host
	blob = strings.TrimPrefix(parsedURL.Path, "/")
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("blob URL must be azblob://<container>/<blob>")
	}
	return container, blob, nil
}

// GetImage downloads the referenced blob into dst
func (s *azureStorage) GetImage(ctx context.Context, blobURL string, dst io.Writer) (int64, error) {
	containerName, blobName, err := ParseBlobURL(blobURL)
	if err != nil {
		return 0, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	return copyLimited(dst, retryReader, s.maxBytes)
}
