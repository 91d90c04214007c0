package validation

import (
	"testing"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
)

func TestNewURLValidator(t *testing.T) {
	validator := NewURLValidator()
	if validator == nil {
		t.Fatal("Expected non-nil URL validator")
	}

	// Check default schemes
	expectedSchemes := []string{"http", "https", "azblob"}
	if len(validator.allowedSchemes) != len(expectedSchemes) {
		t.Errorf("Expected %d schemes, got %d", len(expectedSchemes), len(validator.allowedSchemes))
	}

	for i, scheme := range expectedSchemes {
		if validator.allowedSchemes[i] != scheme {
			t.Errorf("Expected scheme %s, got %s", scheme, validator.allowedSchemes[i])
		}
	}
	if !validator.allowLocal {
		t.Error("Expected local paths to be allowed by default")
	}
}

func TestValidateImageURL_ValidReferences(t *testing.T) {
	validator := NewURLValidator()

	validRefs := []string{
		"http://example.com/image.jpg",
		"https://example.com/image.png",
		"https://subdomain.example.com/path/to/image.gif",
		"http://192.168.1.1/image.jpg",
		"azblob://evidence/case-42/photo.jpg",
		"photo.jpg",
		"/var/lib/evidence/photo.png",
	}

	for _, ref := range validRefs {
		if err := validator.ValidateImageURL(ref); err != nil {
			t.Errorf("Expected valid reference %s to pass validation, got error: %v", ref, err)
		}
	}
}

func TestValidateImageURL_Empty(t *testing.T) {
	validator := NewURLValidator()

	for _, ref := range []string{"", "   ", "\t\n"} {
		err := validator.ValidateImageURL(ref)
		if err == nil {
			t.Errorf("Expected empty reference '%s' to fail validation", ref)
			continue
		}
		if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			t.Errorf("Expected validation error, got: %T", err)
		}
	}
}

func TestValidateImageURL_Invalid(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		ref     string
		message string
	}{
		{"ftp://example.com/image.jpg", "URL scheme not allowed"},
		{"file://local/path/image.jpg", "URL scheme not allowed"},
		{"http://", "URL must have a valid host"},
		{"https:///path", "URL must have a valid host"},
		{"azblob:///blob.jpg", "azblob reference must name a container"},
		{"azblob://container", "azblob reference must name a blob"},
		{"azblob://container/", "azblob reference must name a blob"},
	}

	for _, tt := range tests {
		err := validator.ValidateImageURL(tt.ref)
		if err == nil {
			t.Errorf("Expected '%s' to fail validation", tt.ref)
			continue
		}
		if appErr, ok := err.(*apperrors.AppError); ok {
			if appErr.Message != tt.message {
				t.Errorf("%s: expected '%s' error, got: %s", tt.ref, tt.message, appErr.Message)
			}
		} else {
			t.Errorf("Expected AppError, got: %T", err)
		}
	}

	if err := validator.ValidateImageURL("://missing-scheme"); err == nil {
		t.Error("Expected reference without scheme to fail validation")
	}
}

func TestValidateImageURL_NoLocal(t *testing.T) {
	validator := NewURLValidatorWithOptions([]string{"https"}, nil, false)

	if err := validator.ValidateImageURL("photo.jpg"); err == nil {
		t.Error("Expected local path to be rejected")
	}
	if err := validator.ValidateImageURL("https://example.com/photo.jpg"); err != nil {
		t.Errorf("Expected https URL to pass, got %v", err)
	}
}

func TestValidateImageURL_RestrictedHosts(t *testing.T) {
	allowedHosts := []string{"example.com", "trusted.com"}
	validator := NewURLValidatorWithOptions([]string{"http", "https"}, allowedHosts, true)

	for _, ref := range []string{"http://example.com/image.jpg", "https://trusted.com/image.png"} {
		if err := validator.ValidateImageURL(ref); err != nil {
			t.Errorf("Expected allowed host URL '%s' to pass validation, got error: %v", ref, err)
		}
	}

	for _, ref := range []string{"http://malicious.com/image.jpg", "https://untrusted.com/image.png"} {
		err := validator.ValidateImageURL(ref)
		if err == nil {
			t.Errorf("Expected disallowed host URL '%s' to fail validation", ref)
			continue
		}
		if appErr, ok := err.(*apperrors.AppError); ok && appErr.Message != "URL host not allowed" {
			t.Errorf("Expected 'URL host not allowed' error, got: %s", appErr.Message)
		}
	}
}

func TestIsRemote(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/a.png": true,
		"azblob://c/b.jpg":          true,
		"a.png":                     false,
		"./dir/a.png":               false,
		`C:\images\a.png`:           false,
	}
	for ref, want := range tests {
		if got := IsRemote(ref); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", ref, got, want)
		}
	}
}
