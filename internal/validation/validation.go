package validation

import (
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"timeline-editor/internal/timeline"
)

const (
	MaxFileSize = 500 * 1024 * 1024 // 500MB
)

var (
	ErrFileTooLarge       = errors.New("file too large - maximum 500MB allowed")
	ErrInvalidFileType    = errors.New("invalid file type - only mp4, mov, webm, mp3, wav, m4a, ogg allowed")
	ErrFilenameTooLong    = errors.New("filename too long - maximum 255 characters")
	ErrEmptyFile          = errors.New("file is empty")
	ErrProjectNameMissing = errors.New("project name is required")
	ErrProjectNameTooLong = errors.New("project name too long - maximum 255 characters")
)

var AllowedMimeTypes = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/webm":      true,
	"audio/mpeg":      true,
	"audio/mp3":       true,
	"audio/mp4":       true,
	"audio/m4a":       true,
	"audio/x-m4a":     true,
	"audio/wav":       true,
	"audio/wave":      true,
	"audio/x-wav":     true,
	"audio/ogg":       true,
	"audio/vorbis":    true,
	"audio/webm":      true,
}

// ValidateUpload checks the multipart header and returns the effective
// content type. When the client declared nothing useful, the type is guessed
// from the extension and then sniffed from the first bytes of the file.
func ValidateUpload(fileHeader *multipart.FileHeader, head io.Reader) (string, error) {

	if fileHeader.Size == 0 {
		return "", ErrEmptyFile
	}

	if fileHeader.Size > MaxFileSize {
		return "", ErrFileTooLarge
	}

	if len(fileHeader.Filename) > 255 {
		return "", ErrFilenameTooLong
	}

	contentType := normalize(fileHeader.Header.Get("Content-Type"))

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = GuessContentType(fileHeader.Filename)
	}

	if contentType == "application/octet-stream" && head != nil {
		contentType = sniffContentType(head)
	}

	if !AllowedMimeTypes[contentType] {
		return "", ErrInvalidFileType
	}

	return contentType, nil
}

// KindFor is the audio/video classification bit of an accepted upload.
func KindFor(contentType string) timeline.Kind {
	return timeline.KindFromMediaType(contentType)
}

func normalize(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func sniffContentType(head io.Reader) string {
	mt, err := mimetype.DetectReader(head)
	if err != nil {
		return "application/octet-stream"
	}
	return normalize(mt.String())
}

// GuessContentType maps a file extension to its media type, or
// application/octet-stream when the extension is unknown.
func GuessContentType(filename string) string {

	idx := strings.LastIndex(filename, ".")
	if idx == -1 {
		return "application/octet-stream"
	}

	ext := strings.ToLower(filename[idx+1:])

	typeMap := map[string]string{
		"mp4":  "video/mp4",
		"mov":  "video/quicktime",
		"webm": "video/webm",
		"mp3":  "audio/mpeg",
		"m4a":  "audio/mp4",
		"wav":  "audio/wav",
		"ogg":  "audio/ogg",
	}

	if ct, ok := typeMap[ext]; ok {
		return ct
	}

	return "application/octet-stream"
}

func ValidateProjectName(name string) error {

	name = strings.TrimSpace(name)

	if name == "" {
		return ErrProjectNameMissing
	}

	if len(name) > 255 {
		return ErrProjectNameTooLong
	}

	return nil
}
