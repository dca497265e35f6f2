package types

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"go.lsp.dev/uri"
)

// DefaultProjectURI is the root of the fallback project for documents outside
// any opened workspace root.
const DefaultProjectURI = "about:default-project"

// ErrNotFileURI is returned by FilesystemPath for non-file URIs
var ErrNotFileURI = errors.New("not a file URI")

// URI is a document or project identity.
//
// Two URIs are the same identity when their Normalized forms are equal.
// The normalized form is computed once, on construction.
type URI struct {
	raw        uri.URI
	normalized string
	path       string
}

// ParseURI creates a URI from its string form. Plain filesystem paths are
// accepted and converted to file URIs.
func ParseURI(s string) (URI, error) {
	if s == "" {
		return URI{}, errors.New("empty URI")
	}

	if !strings.Contains(s, ":") || strings.HasPrefix(s, "/") {
		return FileURI(s), nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return URI{}, fmt.Errorf("invalid URI %q: %w", s, err)
	}
	if u.Scheme == "" {
		return URI{}, fmt.Errorf("invalid URI %q: missing scheme", s)
	}

	if strings.EqualFold(u.Scheme, uri.FileScheme) {
		return fileURI(uri.URI(s), u.Path), nil
	}

	return URI{raw: uri.URI(s), normalized: strings.ToLower(u.Scheme) + s[len(u.Scheme):]}, nil
}

// MustParseURI is ParseURI for constants and tests
func MustParseURI(s string) URI {
	u, err := ParseURI(s)
	if err != nil {
		panic(err)
	}
	return u
}

// FileURI creates a file URI from a filesystem path
func FileURI(p string) URI {
	raw := uri.File(p)
	if u, err := url.Parse(string(raw)); err == nil {
		p = u.Path
	}
	return fileURI(raw, p)
}

// fileURI cleans the decoded path p and keeps the normalized form escaped,
// so that parsing Normalized yields the same identity.
func fileURI(raw uri.URI, p string) URI {
	if p == "" {
		p = "/"
	}
	p = path.Clean(p)

	normalized := (&url.URL{Scheme: uri.FileScheme, Path: p}).String()
	return URI{raw: raw, normalized: normalized, path: p}
}

// String returns the URI as it was given
func (u URI) String() string {
	return string(u.raw)
}

// LSP returns the URI in the protocol representation
func (u URI) LSP() uri.URI {
	return u.raw
}

// Normalized returns the canonical string form, used as map key
func (u URI) Normalized() string {
	return u.normalized
}

// IsZero reports whether the URI was never set
func (u URI) IsZero() bool {
	return u.normalized == ""
}

// IsFile reports whether the URI has the file scheme
func (u URI) IsFile() bool {
	return strings.HasPrefix(u.normalized, uri.FileScheme+"://")
}

// Equals compares normalized forms
func (u URI) Equals(other URI) bool {
	return u.normalized == other.normalized
}

// IsParentOf reports whether other lies strictly below u.
func (u URI) IsParentOf(other URI) bool {
	parent := u.normalized
	if parent == "" || parent == other.normalized {
		return false
	}
	if !strings.HasSuffix(parent, "/") {
		parent += "/"
	}
	return strings.HasPrefix(other.normalized, parent)
}

// FilesystemPath returns the local path of a file URI
func (u URI) FilesystemPath() (string, error) {
	if !u.IsFile() {
		return "", fmt.Errorf("%s: %w", u.raw, ErrNotFileURI)
	}
	return u.path, nil
}
