package gateway

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/bep/imagemeta"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/anime-shed/image-forensics-go/internal/config"
	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
)

// ExifTags maps "<Group> <Tag>" (e.g. "Image Make", "EXIF ExposureTime",
// "GPS GPSLatitude") to the tag's printable value
type ExifTags map[string]string

// EXIF tag groups
const (
	GroupImage     = "Image"
	GroupExif      = "EXIF"
	GroupGPS       = "GPS"
	GroupInterop   = "Interoperability"
	GroupThumbnail = "Thumbnail"
)

// HasGroup reports whether any tag belongs to the given group
func (t ExifTags) HasGroup(group string) bool {
	for key := range t {
		if strings.HasPrefix(key, group) {
			return true
		}
	}
	return false
}

// ExifReader extracts EXIF tags from an image file
type ExifReader interface {
	ReadTags(path string) (ExifTags, error)
	Name() string
}

// NewExifReader returns the reader for a configured backend name
func NewExifReader(backend string) (ExifReader, error) {
	switch backend {
	case config.ExifBackendImagemeta, "":
		return NewImagemetaReader(), nil
	case config.ExifBackendGoexif:
		return NewGoexifReader(), nil
	default:
		return nil, fmt.Errorf("unsupported EXIF backend: %s", backend)
	}
}

// ReadExif runs reader against path, turning errors and panics into failures.
// A file without any EXIF block is a success with no tags.
func ReadExif(reader ExifReader, path string) (result Result[ExifTags]) {
	defer func() {
		if r := recover(); r != nil {
			result = Failure[ExifTags](apperrors.NewExtractionError(
				fmt.Sprintf("EXIF reader %s panicked: %v", reader.Name(), r), nil))
		}
	}()

	tags, err := reader.ReadTags(path)
	if err != nil {
		return Failure[ExifTags](apperrors.NewExtractionError("failed to read EXIF metadata", err))
	}
	if tags == nil {
		tags = ExifTags{}
	}
	return Success(tags)
}

// imagemetaReader decodes EXIF with github.com/bep/imagemeta
type imagemetaReader struct{}

// NewImagemetaReader creates the default EXIF reader
func NewImagemetaReader() ExifReader {
	return &imagemetaReader{}
}

func (r *imagemetaReader) Name() string {
	return config.ExifBackendImagemeta
}

func (r *imagemetaReader) ReadTags(path string) (ExifTags, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	format, ok := imagemetaFormat(data)
	if !ok {
		// container cannot carry EXIF
		return ExifTags{}, nil
	}

	tags := ExifTags{}
	_, err = imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return true
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			tags[exifGroupForNamespace(ti.Namespace)+" "+ti.Tag] = formatTagValue(ti.Value)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func imagemetaFormat(data []byte) (imagemeta.ImageFormat, bool) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		return imagemeta.JPEG, true
	case bytes.HasPrefix(data, pngSignature):
		return imagemeta.PNG, true
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return imagemeta.WebP, true
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return imagemeta.TIFF, true
	}
	return 0, false
}

// exifGroupForNamespace maps an IFD path such as "IFD0/ExifIFD" to its group
func exifGroupForNamespace(namespace string) string {
	ns := strings.ToLower(namespace)
	switch {
	case strings.Contains(ns, "gps"):
		return GroupGPS
	case strings.Contains(ns, "interop"):
		return GroupInterop
	case strings.Contains(ns, "exif"):
		return GroupExif
	case strings.Contains(ns, "ifd1"):
		return GroupThumbnail
	default:
		return GroupImage
	}
}

func formatTagValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimRight(val, "\x00 ")
	case []byte:
		return blobValue(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// goexifReader decodes EXIF with github.com/rwcarlsen/goexif
type goexifReader struct{}

// NewGoexifReader creates the alternative EXIF reader
func NewGoexifReader() ExifReader {
	return &goexifReader{}
}

func (r *goexifReader) Name() string {
	return config.ExifBackendGoexif
}

func (r *goexifReader) ReadTags(path string) (ExifTags, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	payload, ok := exifPayload(data, sniffFormat(data))
	if !ok {
		return ExifTags{}, nil
	}

	x, err := exif.Decode(bytes.NewReader(payload))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, err
	}

	tags := ExifTags{}
	if err := x.Walk(goexifWalker{tags: tags}); err != nil {
		return nil, err
	}
	return tags, nil
}

type goexifWalker struct {
	tags ExifTags
}

func (w goexifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	val := tag.String()
	// Remove surrounding quotes from string values
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]
	}
	w.tags[goexifGroup(string(name))+" "+string(name)] = val
	return nil
}

// goexif flattens IFDs, so the group is recovered from the field name
var ifd0Fields = map[string]bool{
	"ImageWidth": true, "ImageLength": true, "BitsPerSample": true, "Compression": true,
	"PhotometricInterpretation": true, "Orientation": true, "SamplesPerPixel": true,
	"PlanarConfiguration": true, "YCbCrSubSampling": true, "YCbCrPositioning": true,
	"XResolution": true, "YResolution": true, "ResolutionUnit": true, "DateTime": true,
	"ImageDescription": true, "Make": true, "Model": true, "Software": true,
	"Artist": true, "Copyright": true, "ExifIFDPointer": true, "GPSInfoIFDPointer": true,
}

func goexifGroup(name string) string {
	switch {
	case ifd0Fields[name]:
		return GroupImage
	case strings.HasPrefix(name, "GPS"):
		return GroupGPS
	case strings.HasPrefix(name, "ThumbJPEG"):
		return GroupThumbnail
	case name == "InteroperabilityIndex":
		return GroupInterop
	default:
		return GroupExif
	}
}

func sniffFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		return "jpeg"
	case bytes.HasPrefix(data, pngSignature):
		return "png"
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "webp"
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return "tiff"
	}
	return ""
}
