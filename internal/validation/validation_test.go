package validation

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeline-editor/internal/timeline"
)

func header(name, contentType string, size int64) *multipart.FileHeader {
	h := textproto.MIMEHeader{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &multipart.FileHeader{Filename: name, Header: h, Size: size}
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name    string
		header  *multipart.FileHeader
		want    string
		wantErr error
	}{
		{"declared video", header("clip.mp4", "video/mp4", 10), "video/mp4", nil},
		{"declared with params", header("song.mp3", "audio/mpeg; charset=binary", 10), "audio/mpeg", nil},
		{"guessed from extension", header("song.WAV", "", 10), "audio/wav", nil},
		{"octet stream guessed", header("clip.mov", "application/octet-stream", 10), "video/quicktime", nil},
		{"empty", header("clip.mp4", "video/mp4", 0), "", ErrEmptyFile},
		{"too large", header("clip.mp4", "video/mp4", MaxFileSize+1), "", ErrFileTooLarge},
		{"long name", header(strings.Repeat("a", 256)+".mp4", "video/mp4", 10), "", ErrFilenameTooLong},
		{"not media", header("notes.txt", "text/plain", 10), "", ErrInvalidFileType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateUpload(tt.header, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateUpload_Sniffs(t *testing.T) {
	// An ID3 tag is enough for the sniffer to recognise mp3.
	head := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)

	got, err := ValidateUpload(header("upload", "", 100), bytes.NewReader(head))
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", got)
	assert.Equal(t, timeline.KindAudio, KindFor(got))

	_, err = ValidateUpload(header("upload", "", 100), strings.NewReader("plain text, not media"))
	assert.ErrorIs(t, err, ErrInvalidFileType)
}

func TestValidateProjectName(t *testing.T) {
	assert.NoError(t, ValidateProjectName("Holiday cut"))
	assert.ErrorIs(t, ValidateProjectName("   "), ErrProjectNameMissing)
	assert.ErrorIs(t, ValidateProjectName(strings.Repeat("x", 256)), ErrProjectNameTooLong)
}

func TestValidatePayload(t *testing.T) {
	valid := []string{
		`{}`,
		`{"media_files": [], "clips": [], "music_tracks": null}`,
		`{"clips": [{"name": "a", "source": "/uploads/a.mp4", "type": "video", "duration": 4, "sourceDuration": 4, "startOffset": 0}],
		  "music_tracks": [{"source": "/uploads/s.mp3", "type": "audio", "duration": 8, "startTime": 10}]}`,
	}
	for _, raw := range valid {
		assert.NoError(t, ValidatePayload([]byte(raw)), raw)
	}

	invalid := []string{
		`not json`,
		`{"clips": {}}`,
		`{"clips": [{"name": "a"}]}`,
		`{"clips": [{"source": "a", "duration": -1}]}`,
		`{"music_tracks": [{"source": "a", "type": "image"}]}`,
	}
	for _, raw := range invalid {
		assert.ErrorIs(t, ValidatePayload([]byte(raw)), ErrInvalidPayload, raw)
	}
}
