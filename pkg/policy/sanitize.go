package policy

import (
	"golang.org/x/sys/unix"
)

// CopyFileRequest carries the fields of the agent protocol's copy-file call
// that policy evaluation needs. Data holds either file contents or, for
// symlink creation, the raw link target bytes.
type CopyFileRequest struct {
	Path     string `json:"path"`
	FileSize int64  `json:"file_size"`
	FileMode uint32 `json:"file_mode"`
	DirMode  uint32 `json:"dir_mode"`
	UID      int32  `json:"uid"`
	GID      int32  `json:"gid"`
	Offset   int64  `json:"offset"`
	Data     []byte `json:"data,omitempty"`
}

// SetPolicyRequest carries the replacement policy text.
type SetPolicyRequest struct {
	Policy string `json:"policy"`
}

// policyCopyFileRequest is the sanitized projection of CopyFileRequest:
//   - When creating a symbolic link, symlink_src is the string form of the
//     request's data bytes. A string is directly comparable inside rego,
//     a byte vector is not.
//   - Otherwise the data field is dropped entirely, so large file contents
//     the policy is unlikely to need never reach the evaluator.
type policyCopyFileRequest struct {
	Path     string `json:"path"`
	FileSize int64  `json:"file_size"`
	FileMode uint32 `json:"file_mode"`
	DirMode  uint32 `json:"dir_mode"`
	UID      int32  `json:"uid"`
	GID      int32  `json:"gid"`
	Offset   int64  `json:"offset"`

	SymlinkSrc string `json:"symlink_src"`
}

func sanitizeCopyFile(req *CopyFileRequest) policyCopyFileRequest {
	symlinkSrc := ""
	if req.FileMode&unix.S_IFMT == unix.S_IFLNK {
		symlinkSrc = string(req.Data)
	}
	return policyCopyFileRequest{
		Path:       req.Path,
		FileSize:   req.FileSize,
		FileMode:   req.FileMode,
		DirMode:    req.DirMode,
		UID:        req.UID,
		GID:        req.GID,
		Offset:     req.Offset,
		SymlinkSrc: symlinkSrc,
	}
}
