package models

import (
	"path"
	"strings"
	"time"
)

// FileInfo represents metadata about an uploaded file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "parsing", "parsed", "error"
	ContentKey string    `json:"contentKey,omitempty"`
}

// UploadedFile is a payload together with the name the client declared for it.
type UploadedFile struct {
	Name string
	Data []byte
}

// Size returns the payload length in bytes.
func (f UploadedFile) Size() int64 {
	return int64(len(f.Data))
}

// Extension returns the lower-cased text after the last dot of the name,
// or "" when the name has no dot.
func (f UploadedFile) Extension() string {
	return ExtensionOf(f.Name)
}

// Stem returns the lower-cased name without its final extension.
// It is the default chart title.
func (f UploadedFile) Stem() string {
	name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// ExtensionOf returns the lower-cased extension of a file name without the dot.
func ExtensionOf(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
