package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// maxNameLength bounds entity, attribute and relationship names.
const maxNameLength = 256

// ValidateName validates a display name for an entity, attribute or relationship.
//
// The validation rules are intentionally conservative:
//   - No empty names (after trimming)
//   - No control characters
//   - Maximum length of 256 characters
func ValidateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidInput, "%s name cannot be empty", kind)
	}

	if len(name) > maxNameLength {
		return New(ErrCodeInvalidInput, "%s name too long (max %d characters)", kind, maxNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "%s name contains invalid control characters", kind)
		}
	}

	return nil
}

// workspaceIDRegex matches workspace identifiers safe to use as file names and keys.
var workspaceIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateWorkspaceID validates a workspace identifier.
// Identifiers become file names in the file backend, so path separators and
// traversal sequences are rejected.
func ValidateWorkspaceID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "workspace id cannot be empty")
	}
	if strings.Contains(id, "..") {
		return New(ErrCodeInvalidInput, "workspace id cannot contain path traversal sequences (..)")
	}
	if !workspaceIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid workspace id: %q", id)
	}
	return nil
}

// ValidateURL checks a service endpoint such as the text-service base URL.
// It must be an absolute http or https URL with a host and no query or
// fragment, since API paths are appended to it.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid URL %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidInput, "URL %q must use http or https", rawURL)
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL %q has no host", rawURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return New(ErrCodeInvalidInput, "URL %q must not carry a query or fragment", rawURL)
	}
	return nil
}
