package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
	"github.com/anime-shed/image-forensics-go/internal/storage"
	"github.com/anime-shed/image-forensics-go/pkg/validation"
)

// SourceRepository implements ImageRepository over local paths, HTTP(S)
// URLs and Azure blobs
type SourceRepository struct {
	fetcher   storage.ImageFetcher
	blobs     storage.BlobStorage
	validator *validation.URLValidator
	tempDir   string
}

// NewSourceRepository creates a repository. blobs may be nil when Azure is
// not configured; downloads land in tempDir (os.TempDir() when empty).
func NewSourceRepository(fetcher storage.ImageFetcher, blobs storage.BlobStorage, validator *validation.URLValidator, tempDir string) *SourceRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &SourceRepository{
		fetcher:   fetcher,
		blobs:     blobs,
		validator: validator,
		tempDir:   tempDir,
	}
}

// ValidateImageURL validates if the provided reference is acceptable
func (r *SourceRepository) ValidateImageURL(ref string) error {
	return r.validator.ValidateImageURL(ref)
}

// Resolve returns a local file for ref, downloading remote sources into a
// uniquely named temporary file
func (r *SourceRepository) Resolve(ctx context.Context, ref string) (*LocalImage, error) {
	if err := r.ValidateImageURL(ref); err != nil {
		return nil, err
	}

	if !validation.IsRemote(ref) {
		return &LocalImage{Path: ref, Source: ref}, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image reference", err)
	}

	var fetch func(io.Writer) (int64, error)
	switch u.Scheme {
	case validation.SchemeAzBlob:
		if r.blobs == nil {
			return nil, apperrors.NewValidationError("azblob references need Azure storage credentials", ErrSourceUnavailable)
		}
		fetch = func(w io.Writer) (int64, error) { return r.blobs.GetImage(ctx, ref, w) }
	default:
		if r.fetcher == nil {
			return nil, apperrors.NewValidationError("remote references are not enabled", ErrSourceUnavailable)
		}
		fetch = func(w io.Writer) (int64, error) { return r.fetcher.FetchImage(ctx, ref, w) }
	}

	return r.download(ctx, ref, path.Ext(u.Path), fetch)
}

func (r *SourceRepository) download(ctx context.Context, ref, ext string, fetch func(io.Writer) (int64, error)) (*LocalImage, error) {
	dir := r.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	dst := filepath.Join(dir, fmt.Sprintf("source-%s%s", uuid.NewString(), sanitizeExt(ext)))

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create download file", err)
	}

	n, fetchErr := fetch(f)
	closeErr := f.Close()
	if fetchErr == nil {
		fetchErr = closeErr
	}
	if fetchErr != nil {
		os.Remove(dst)
		return nil, classifyFetchError(ctx, fetchErr)
	}

	return &LocalImage{Path: dst, Source: ref, Size: n, Temporary: true}, nil
}

func classifyFetchError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.NewTimeoutError("timed out fetching image", err)
	case errors.Is(err, storage.ErrTooLarge):
		return apperrors.NewValidationError("image exceeds the maximum allowed size", err)
	default:
		return apperrors.NewNetworkError("failed to fetch image", err)
	}
}

// sanitizeExt keeps short alphanumeric extensions so decoders and external
// tools still see a familiar suffix
func sanitizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
