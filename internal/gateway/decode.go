package gateway

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
)

// ImageHandle is a successfully decoded image, read-only for the duration
// of one analysis run
type ImageHandle struct {
	Path   string
	Format string
	Width  int
	Height int
	Image  image.Image

	// raw file contents, shared read-only with the metadata parsers
	data []byte
}

// Decode opens path as an image. Any failure is a decode error, which is
// fatal for the analysis run.
func Decode(path string) (*ImageHandle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewDecodeError(fmt.Sprintf("failed to open image %s", path), err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewDecodeError(fmt.Sprintf("failed to decode image %s", path), err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, apperrors.NewDecodeError(fmt.Sprintf("image %s has no pixels", path), nil)
	}

	return &ImageHandle{
		Path:   path,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Image:  img,
		data:   data,
	}, nil
}

// raw returns the file bytes read by Decode
func (h *ImageHandle) raw() ([]byte, error) {
	if h.data == nil {
		return nil, fmt.Errorf("image %s has no file contents", h.Path)
	}
	return h.data, nil
}
