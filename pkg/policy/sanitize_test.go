package policy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestSanitizeCopyFileSymlink(t *testing.T) {
	req := &CopyFileRequest{
		Path:     "/run/kata-containers/shared/link",
		FileMode: unix.S_IFLNK | 0o777,
		Data:     []byte("/target/path"),
	}
	doc := sanitizeCopyFile(req)
	assert.Equal(t, "/target/path", doc.SymlinkSrc)
}

func TestSanitizeCopyFileRegularDropsPayload(t *testing.T) {
	tests := []struct {
		name string
		mode uint32
		data []byte
	}{
		{"regular file small", unix.S_IFREG | 0o644, []byte("contents")},
		{"regular file large", unix.S_IFREG | 0o644, bytes.Repeat([]byte{0xAB}, 1<<20)},
		{"directory", unix.S_IFDIR | 0o755, []byte("ignored")},
		{"no mode bits", 0o644, []byte("ignored")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := sanitizeCopyFile(&CopyFileRequest{Path: "/p", FileMode: tc.mode, Data: tc.data})
			assert.Empty(t, doc.SymlinkSrc)
		})
	}
}

// Sanitizing an already-sanitized document, treated as a request again, must
// yield the same document.
func TestSanitizeCopyFileIdempotent(t *testing.T) {
	req := &CopyFileRequest{
		Path:     "/p",
		FileSize: 42,
		FileMode: unix.S_IFLNK,
		DirMode:  0o755,
		UID:      1000,
		GID:      1000,
		Offset:   7,
		Data:     []byte("/target"),
	}
	first := sanitizeCopyFile(req)

	again := sanitizeCopyFile(&CopyFileRequest{
		Path:     first.Path,
		FileSize: first.FileSize,
		FileMode: first.FileMode,
		DirMode:  first.DirMode,
		UID:      first.UID,
		GID:      first.GID,
		Offset:   first.Offset,
		Data:     []byte(first.SymlinkSrc),
	})
	assert.Equal(t, first, again)
}
