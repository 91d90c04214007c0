package gateway

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
)

// MetadataBundle holds the three independent metadata extractions of one
// image. Any subset may have failed.
type MetadataBundle struct {
	Basic Result[Attributes]
	Exif  Result[ExifTags]
	Tool  Result[string]
}

// Gateway is the single boundary between the analysis pipeline and image
// file parsing or external metadata tools
type Gateway struct {
	exif ExifReader
	tool MetadataTool
}

// New creates a gateway with the given EXIF backend and external tool
func New(exif ExifReader, tool MetadataTool) *Gateway {
	if exif == nil {
		exif = NewImagemetaReader()
	}
	return &Gateway{exif: exif, tool: tool}
}

// Decode opens and decodes an image file
func (g *Gateway) Decode(path string) (*ImageHandle, error) {
	return Decode(path)
}

// ExifTags reads the EXIF tags of the handle's file
func (g *Gateway) ExifTags(h *ImageHandle) Result[ExifTags] {
	return ReadExif(g.exif, h.Path)
}

// ToolMetadata runs the external analyzer against the handle's file
func (g *Gateway) ToolMetadata(ctx context.Context, h *ImageHandle) Result[string] {
	if g.tool == nil {
		return Failure[string](apperrors.NewExtractionError("no metadata tool configured", nil))
	}
	return g.tool.Run(ctx, h.Path)
}

// Extract runs the three metadata extractions concurrently. Each goroutine
// writes only its own slot of the bundle.
func (g *Gateway) Extract(ctx context.Context, h *ImageHandle) MetadataBundle {
	var (
		bundle MetadataBundle
		wg     sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		defer recoverInto(&bundle.Basic, "basic attributes")
		bundle.Basic = BasicAttributes(h)
	}()
	go func() {
		defer wg.Done()
		defer recoverInto(&bundle.Exif, "EXIF")
		bundle.Exif = g.ExifTags(h)
	}()
	go func() {
		defer wg.Done()
		defer recoverInto(&bundle.Tool, "metadata tool")
		bundle.Tool = g.ToolMetadata(ctx, h)
	}()
	wg.Wait()

	return bundle
}

func recoverInto[T any](slot *Result[T], what string) {
	if r := recover(); r != nil {
		*slot = Failure[T](apperrors.NewExtractionError(fmt.Sprintf("%s extraction panicked: %v", what, r), nil))
	}
}
