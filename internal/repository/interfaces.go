package repository

import (
	"context"
	"os"
)

// ImageRepository resolves image references to local files
type ImageRepository interface {
	// Resolve makes ref available as a local file for one analysis run
	Resolve(ctx context.Context, ref string) (*LocalImage, error)

	// ValidateImageURL validates if the provided reference is acceptable
	ValidateImageURL(ref string) error
}

// LocalImage is a resolved image file. Temporary files are removed by
// Release; local paths are left untouched.
type LocalImage struct {
	Path      string
	Source    string
	Size      int64
	Temporary bool
}

// Release removes the file if the repository created it
func (l *LocalImage) Release() error {
	if l == nil || !l.Temporary {
		return nil
	}
	if err := os.Remove(l.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
