package analyzer

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/corona10/goimagehash"
	"gonum.org/v1/gonum/stat"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

const (
	DefaultCloneBlockSize    = 32
	DefaultCloneMaxDistance  = 2
	DefaultCloneMaxCandidate = 50

	// tiles with lower luma variance carry too little texture to compare
	minTileVariance = 4.0
)

type tileHash struct {
	x, y int
	hash *goimagehash.ImageHash
}

// cloneFinder implements CloneFinder with per-tile difference hashes
type cloneFinder struct {
	blockSize     int
	maxDistance   int
	maxCandidates int
}

// NewCloneFinder creates a finder over blockSize×blockSize tiles; zero or
// negative sizes fall back to DefaultCloneBlockSize
func NewCloneFinder(blockSize int) CloneFinder {
	if blockSize <= 0 {
		blockSize = DefaultCloneBlockSize
	}
	return &cloneFinder{
		blockSize:     blockSize,
		maxDistance:   DefaultCloneMaxDistance,
		maxCandidates: DefaultCloneMaxCandidate,
	}
}

// BlockSize returns the tile edge length
func (f *cloneFinder) BlockSize() int {
	return f.blockSize
}

// Find lists pairs of non-adjacent tiles whose hashes are within the
// distance threshold, in scan order, up to the candidate cap
func (f *cloneFinder) Find(img image.Image) ([]models.CloneCandidate, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, apperrors.NewTransformError("clone search needs a non-empty image", nil)
	}

	hashes, err := f.hashTiles(img)
	if err != nil {
		return nil, err
	}

	var candidates []models.CloneCandidate
	for i := 0; i < len(hashes); i++ {
		for j := i + 1; j < len(hashes); j++ {
			a, b := hashes[i], hashes[j]
			if f.adjacent(a, b) {
				continue
			}
			dist, err := a.hash.Distance(b.hash)
			if err != nil {
				return nil, apperrors.NewTransformError("failed to compare tile hashes", err)
			}
			if dist > f.maxDistance {
				continue
			}
			candidates = append(candidates, models.CloneCandidate{
				SourceX:  a.x,
				SourceY:  a.y,
				TargetX:  b.x,
				TargetY:  b.y,
				Size:     f.blockSize,
				Distance: dist,
			})
			if len(candidates) >= f.maxCandidates {
				return candidates, nil
			}
		}
	}
	return candidates, nil
}

func (f *cloneFinder) hashTiles(img image.Image) ([]tileHash, error) {
	bounds := img.Bounds()
	gray := toGray(img)

	var hashes []tileHash
	for y := 0; y+f.blockSize <= bounds.Dy(); y += f.blockSize {
		for x := 0; x+f.blockSize <= bounds.Dx(); x += f.blockSize {
			rect := image.Rect(x, y, x+f.blockSize, y+f.blockSize)
			if tileVariance(gray, rect) < minTileVariance {
				continue
			}

			tile := image.NewRGBA(image.Rect(0, 0, f.blockSize, f.blockSize))
			draw.Draw(tile, tile.Bounds(), img, bounds.Min.Add(rect.Min), draw.Src)

			h, err := goimagehash.DifferenceHash(tile)
			if err != nil {
				return nil, apperrors.NewTransformError(fmt.Sprintf("failed to hash tile at %d,%d", x, y), err)
			}
			hashes = append(hashes, tileHash{x: x, y: y, hash: h})
		}
	}
	return hashes, nil
}

func (f *cloneFinder) adjacent(a, b tileHash) bool {
	dx := abs(a.x-b.x) / f.blockSize
	dy := abs(a.y-b.y) / f.blockSize
	return dx <= 1 && dy <= 1
}

func tileVariance(gray *image.Gray, rect image.Rectangle) float64 {
	values := make([]float64, 0, rect.Dx()*rect.Dy())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			values = append(values, float64(gray.Pix[y*gray.Stride+x]))
		}
	}
	return stat.Variance(values, nil)
}
