package upload

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxUploadBytes caps upload size when no limit is configured.
const DefaultMaxUploadBytes = 50 * 1024 * 1024

// maxFilenameLength bounds sanitized filenames.
const maxFilenameLength = 255

// sessionTokenBytes is the entropy of a generated session identifier; hex
// encoding doubles it to the visible length.
const sessionTokenBytes = 16

// allowedExtensions is the upload extension allow-list.
var allowedExtensions = map[string]bool{
	".txt": true,
	".pdf": true,
}

// magicNumbers maps binary extensions to their required content prefix.
// Text files are checked for valid UTF-8 instead.
var magicNumbers = map[string][]byte{
	".pdf": []byte("%PDF"),
}

var (
	languagePattern     = regexp.MustCompile(`^[a-z]{2}$`)
	sessionIDPattern    = regexp.MustCompile(`^[a-zA-Z0-9-]{8,64}$`)
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// ValidationError rejects a submission before the pipeline starts.
type ValidationError struct {
	Issue string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Issue)
}

// ValidateFileType checks the file content against its claimed extension:
// the extension must be on the allow-list, text files must be valid UTF-8,
// and binary files must start with the expected magic number.
func ValidateFileType(content []byte, filename string) error {
	if len(content) == 0 {
		return &ValidationError{Issue: "file content is empty"}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return &ValidationError{Issue: fmt.Sprintf(
			"file extension %q is not allowed; allowed extensions: %s", ext, AllowedExtensions())}
	}

	if ext == ".txt" {
		if !utf8.Valid(content) {
			return &ValidationError{Issue: "text file contains invalid UTF-8 content"}
		}
		return nil
	}

	if magic, ok := magicNumbers[ext]; ok && !bytes.HasPrefix(content, magic) {
		return &ValidationError{Issue: fmt.Sprintf(
			"file content does not match the expected format for a %s file", ext)}
	}
	return nil
}

// ValidateFileSize enforces the upload size cap. A non-positive maxBytes
// falls back to DefaultMaxUploadBytes.
func ValidateFileSize(content []byte, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if int64(len(content)) > maxBytes {
		return &ValidationError{Issue: fmt.Sprintf(
			"file size (%.2f MB) exceeds maximum allowed size (%.2f MB)",
			float64(len(content))/(1024*1024), float64(maxBytes)/(1024*1024))}
	}
	return nil
}

// ValidateLanguageCode checks for ISO 639-1 shape: exactly two lowercase
// letters. Whether the code is actually supported is the language registry's
// call, not this one.
func ValidateLanguageCode(code string) error {
	if code == "" {
		return &ValidationError{Issue: "language code cannot be empty"}
	}
	if !languagePattern.MatchString(code) {
		return &ValidationError{Issue: fmt.Sprintf(
			"invalid language code format %q; language codes must be 2 lowercase letters", code)}
	}
	return nil
}

// ValidateSessionID checks session identifier shape: 8 to 64 alphanumeric
// characters or hyphens.
func ValidateSessionID(id string) error {
	if id == "" {
		return &ValidationError{Issue: "session ID cannot be empty"}
	}
	if !sessionIDPattern.MatchString(id) {
		return &ValidationError{
			Issue: "invalid session ID format; session IDs must be 8-64 alphanumeric characters or hyphens",
		}
	}
	return nil
}

// SanitizeFilename strips path components and replaces characters outside
// [a-zA-Z0-9._-], yielding a name safe to store and echo back.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		name = name[i+1:]
	}

	sanitized := unsafeFilenameChars.ReplaceAllString(name, "_")

	if strings.HasPrefix(sanitized, ".") {
		sanitized = "_" + sanitized[1:]
	}
	if sanitized == "" || sanitized == "_" {
		sanitized = "unnamed_file"
	}

	if len(sanitized) > maxFilenameLength {
		ext := filepath.Ext(sanitized)
		if len(ext) > maxFilenameLength {
			ext = ""
		}
		stem := strings.TrimSuffix(sanitized, ext)
		if keep := maxFilenameLength - len(ext); len(stem) > keep {
			stem = stem[:keep]
		}
		sanitized = stem + ext
	}
	return sanitized
}

// AllowedExtensions returns the allow-list as a sorted display string.
func AllowedExtensions() string {
	return ".pdf, .txt"
}

// NewSessionID generates a cryptographically random session identifier:
// 32 hex characters, which satisfies ValidateSessionID.
func NewSessionID() string {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
