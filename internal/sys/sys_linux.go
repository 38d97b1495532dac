// Package sys wraps the handful of fd-relative system calls the
// server needs to keep every filesystem access chained from an open
// directory handle. Symbolic links are never followed; a link in the
// final component fails OpenDir with ENOTDIR and OpenFile with ELOOP.
package sys

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// OpenDir opens name as a directory relative to the open directory
// dir. Symlinks are not followed.
func OpenDir(dir *os.File, name string) (*os.File, error) {
	fd, err := unix.Openat(int(dir.Fd()), name,
		unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "openat", Path: name, Err: err}
	}
	return os.NewFile(uintptr(fd), name), nil
}

// OpenFile opens name relative to the open directory dir with the
// given flags and permission bits. O_NOFOLLOW and O_CLOEXEC are
// always added.
func OpenFile(dir *os.File, name string, flag int, perm uint32) (*os.File, error) {
	fd, err := unix.Openat(int(dir.Fd()), name,
		flag|unix.O_NOFOLLOW|unix.O_CLOEXEC, perm)
	if err != nil {
		return nil, &os.PathError{Op: "openat", Path: name, Err: err}
	}
	return os.NewFile(uintptr(fd), name), nil
}

// Stat stats name relative to the open directory dir without
// following a symlink in the final component.
func Stat(dir *os.File, name string) (unix.Stat_t, error) {
	var st unix.Stat_t
	err := unix.Fstatat(int(dir.Fd()), name, &st, unix.AT_SYMLINK_NOFOLLOW)
	if err != nil {
		return st, &os.PathError{Op: "fstatat", Path: name, Err: err}
	}
	return st, nil
}

// Unlink removes the non-directory name relative to the open
// directory dir.
func Unlink(dir *os.File, name string) error {
	if err := unix.Unlinkat(int(dir.Fd()), name, 0); err != nil {
		return &os.PathError{Op: "unlinkat", Path: name, Err: err}
	}
	return nil
}

// Realpath returns the absolute path of the file behind an open
// handle, as the kernel records it.
func Realpath(f *os.File) (string, error) {
	path, err := os.Readlink("/proc/self/fd/" + strconv.Itoa(int(f.Fd())))
	if err != nil {
		return "", fmt.Errorf("realpath of %s: %w", f.Name(), err)
	}
	return path, nil
}
