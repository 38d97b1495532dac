package qooil

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/qooil/qooil/internal/sys"
	"github.com/qooil/qooil/qooilproto"
)

// Path resolution walks one component at a time from an open
// directory handle, so no access can race past the export root. The
// rules:
//
//   - a leading "/" restarts at the root with depth 0, otherwise the
//     walk starts at the session cwd with the session depth
//   - empty and "." segments are skipped
//   - ".." moves to the parent only while depth > 0; at the root it
//     is dropped, which is what confines the client
//   - any other segment is opened below the current handle with
//     symlink following disabled, and increments depth

// splitPath splits a request path into its segments and reports
// whether it was absolute.
func splitPath(path string) (segs []string, abs bool) {
	abs = strings.HasPrefix(path, "/")
	return strings.Split(path, "/"), abs
}

// walkDir resolves path to an owned directory handle and its depth
// below the root. The caller closes the handle, or installs it as the
// new cwd.
func (s *session) walkDir(path string) (*os.File, int, qooilproto.ErrorCode) {
	segs, abs := splitPath(path)
	return s.walkSegments(segs, abs)
}

// walkParent resolves everything up to the final path component and
// returns the owned parent handle plus the basename to operate on.
// When the path has no usable basename (empty, "/", or ending in
// "..") the whole path is resolved and "." is returned, leaving the
// final open or stat to discover that the target is a directory.
func (s *session) walkParent(path string) (*os.File, string, qooilproto.ErrorCode) {
	segs, abs := splitPath(path)
	last := -1
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" {
			last = i
			break
		}
	}
	base := "."
	if last >= 0 && segs[last] != ".." {
		base = segs[last]
		segs = segs[:last]
	}
	dir, _, code := s.walkSegments(segs, abs)
	return dir, base, code
}

func (s *session) walkSegments(segs []string, abs bool) (*os.File, int, qooilproto.ErrorCode) {
	cur, depth := s.cwd, s.depth
	if abs {
		cur, depth = s.root, 0
	}
	owned := false

	step := func(name string) qooilproto.ErrorCode {
		next, err := sys.OpenDir(cur, name)
		if err != nil {
			if owned {
				cur.Close()
			}
			return openErrCode(err)
		}
		if owned {
			cur.Close()
		}
		cur, owned = next, true
		return 0
	}

	for _, seg := range segs {
		switch seg {
		case "", ".":
			// collapses "//" and "/./"; "." is not a descent, so it
			// must not raise depth
		case "..":
			if depth == 0 {
				continue
			}
			if code := step(".."); code != 0 {
				return nil, 0, code
			}
			depth--
		default:
			if code := step(seg); code != 0 {
				return nil, 0, code
			}
			depth++
		}
	}
	if !owned {
		// The walk never left its anchor; hand the caller its own
		// handle on the same directory.
		dup, err := sys.OpenDir(cur, ".")
		if err != nil {
			return nil, 0, openErrCode(err)
		}
		cur = dup
	}
	return cur, depth, 0
}

// openErrCode maps an open or stat failure onto the protocol error
// taxonomy.
func openErrCode(err error) qooilproto.ErrorCode {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return qooilproto.ErrNonExisting
	case errors.Is(err, unix.ENOTDIR):
		return qooilproto.ErrIsNotDir
	case errors.Is(err, fs.ErrPermission):
		return qooilproto.ErrAccessDenied
	}
	return qooilproto.ErrCantOpen
}

// writeErrCode maps a create failure. Creating over a directory
// reports EISDIR, which the taxonomy calls is-not-file.
func writeErrCode(err error) qooilproto.ErrorCode {
	if errors.Is(err, unix.EISDIR) {
		return qooilproto.ErrIsNotFile
	}
	return openErrCode(err)
}

// unlinkErrCode maps an unlink failure the same way.
func unlinkErrCode(err error) qooilproto.ErrorCode {
	if errors.Is(err, unix.EISDIR) {
		return qooilproto.ErrIsNotFile
	}
	return openErrCode(err)
}
