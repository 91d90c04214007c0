package validation

import (
	"net/url"
	"strings"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
)

// Reference schemes understood by the image source repository
const (
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
	SchemeAzBlob = "azblob"
)

// URLValidator validates image references: local paths, http(s) URLs and
// azblob://container/blob references
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
	allowLocal     bool
}

// NewURLValidator creates a validator accepting local paths and all
// supported remote schemes
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{SchemeHTTP, SchemeHTTPS, SchemeAzBlob},
		allowedHosts:   []string{}, // empty means all hosts allowed
		allowLocal:     true,
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options
func NewURLValidatorWithOptions(schemes []string, hosts []string, allowLocal bool) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
		allowLocal:     allowLocal,
	}
}

// IsRemote reports whether ref names a remote source rather than a local path
func IsRemote(ref string) bool {
	return strings.Contains(ref, "://")
}

// ValidateImageURL validates if the provided reference is acceptable for
// image processing
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("image reference cannot be empty", nil)
	}

	if !IsRemote(imageURL) {
		if !v.allowLocal {
			return apperrors.NewValidationError("local image paths are not allowed", nil)
		}
		return nil
	}

	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		if parsedURL.Scheme == SchemeAzBlob {
			return apperrors.NewValidationError("azblob reference must name a container", nil)
		}
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if parsedURL.Scheme == SchemeAzBlob {
		if strings.Trim(parsedURL.Path, "/") == "" {
			return apperrors.NewValidationError("azblob reference must name a blob", nil)
		}
		return nil
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsedURL.Host) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed checks if the URL host is in the allowed list
// Returns true if no host restrictions are set (empty allowedHosts)
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
