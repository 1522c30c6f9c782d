package fs

import (
	"errors"
	"strings"

	"github.com/krihaa/minikernel/internal/sched"
)

// Mode bits for fs.Open, matching the syscall surface's RDONLY=1,
// WRONLY=2, RDWR=3, CREAT=4, UNUSED=0 encoding exactly.
const (
	ModeUnused = 0
	ModeRdOnly = 1
	ModeWrOnly = 2
	ModeRdWr   = 3
	ModeCreat  = 4
)

func canRead(mode int) bool {
	base := mode &^ ModeCreat
	return base == ModeRdOnly || base == ModeRdWr
}

func canWrite(mode int) bool {
	base := mode &^ ModeCreat
	return base == ModeWrOnly || base == ModeRdWr
}

// Seek whence values for fs.Lseek.
const (
	SeekSet = iota
	SeekCur
	SeekEnd
)

var errBadWhence = errors.New("fs: bad whence")

// splitPath separates a path's final component from the directory that
// contains it, preserving a leading "/" on the directory half so
// Name2Inode still resolves it from the root rather than cwd.
func splitPath(path string) (dir, base string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}

// Every syscall below wraps its body in the filesystem-wide lock. Pure
// cooperative scheduling never yields mid-syscall, so this lock is
// advisory today; it exists so a future preemptive build only has to
// start honoring it instead of retrofitting one.

// Open resolves path against t.Cwd, creating it in its parent directory
// when absent and mode carries ModeCreat, and installs it in the first
// free slot of t's open-file table.
func (fsys *FS) Open(t *sched.TCB, path string, mode int) (int, error) {
	fsys.lock.Acquire()
	defer fsys.lock.Release()

	fd := -1
	for i, f := range t.OpenFiles {
		if f.Inode == -1 {
			fd = i
			break
		}
	}
	if fd == -1 {
		return -1, ErrBadFd
	}

	ino, err := fsys.Name2Inode(t.Cwd, path)
	if err != nil {
		if mode&ModeCreat == 0 {
			return -1, err
		}
		dir, base := splitPath(path)
		parent, perr := fsys.Name2Inode(t.Cwd, dir)
		if perr != nil {
			return -1, perr
		}
		ino, err = fsys.createFile(parent, base)
		if err != nil {
			return -1, err
		}
	}

	fsys.inodes[ino].OpenCount++
	fsys.inodes[ino].Pos = 0
	t.OpenFiles[fd] = sched.OpenFile{Mode: mode, Inode: ino}
	return fd, nil
}

func (fsys *FS) createFile(parent int32, name string) (int32, error) {
	idx, ok := fsys.inodeBmap.getFreeEntry(len(fsys.inodes))
	if !ok {
		return -1, ErrFull
	}
	fsys.inodes[idx] = newFreeInode(int32(idx))
	fsys.inodes[idx].Disk.Type = TypeFile
	if err := fsys.createDirectoryEntry(parent, int32(idx), name); err != nil {
		fsys.freeInode(int32(idx))
		return -1, err
	}
	if err := fsys.persistBitmap(inodeBitmapSector, &fsys.inodeBmap); err != nil {
		return -1, err
	}
	return int32(idx), nil
}

// Close releases fd's slot in t's open-file table.
func (fsys *FS) Close(t *sched.TCB, fd int) error {
	fsys.lock.Acquire()
	defer fsys.lock.Release()

	if fd < 0 || fd >= len(t.OpenFiles) || t.OpenFiles[fd].Inode == -1 {
		return ErrBadFd
	}
	fsys.inodes[t.OpenFiles[fd].Inode].OpenCount--
	t.OpenFiles[fd] = sched.OpenFile{Inode: -1}
	return nil
}

// Read reads into buf at fd's current position and advances it by the
// number of bytes transferred.
func (fsys *FS) Read(t *sched.TCB, fd int, buf []byte) (int, error) {
	fsys.lock.Acquire()
	defer fsys.lock.Release()

	entry, err := fsys.checkFd(t, fd)
	if err != nil {
		return 0, err
	}
	if !canRead(entry.Mode) {
		return 0, ErrMode
	}
	inode := &fsys.inodes[entry.Inode]
	n, err := fsys.readAt(inode, buf, inode.Pos)
	inode.Pos += uint32(n)
	return n, err
}

// Write writes buf at fd's current position, growing the file as
// needed, and advances the position by the number of bytes transferred.
func (fsys *FS) Write(t *sched.TCB, fd int, buf []byte) (int, error) {
	fsys.lock.Acquire()
	defer fsys.lock.Release()

	entry, err := fsys.checkFd(t, fd)
	if err != nil {
		return 0, err
	}
	if !canWrite(entry.Mode) {
		return 0, ErrMode
	}
	inode := &fsys.inodes[entry.Inode]
	n, err := fsys.writeAt(inode, buf, inode.Pos)
	inode.Pos += uint32(n)
	return n, err
}

// Lseek repositions fd according to whence, growing the underlying file
// (up to max_filesize) when the new position exceeds its size and fd
// was opened writable.
func (fsys *FS) Lseek(t *sched.TCB, fd int, offset int32, whence int) (uint32, error) {
	fsys.lock.Acquire()
	defer fsys.lock.Release()

	entry, err := fsys.checkFd(t, fd)
	if err != nil {
		return 0, err
	}
	inode := &fsys.inodes[entry.Inode]

	var newPos int64
	switch whence {
	case SeekSet:
		newPos = int64(offset)
	case SeekCur:
		newPos = int64(inode.Pos) + int64(offset)
	case SeekEnd:
		newPos = int64(inode.Disk.Size) + int64(offset)
	default:
		return inode.Pos, errBadWhence
	}
	if newPos < 0 {
		newPos = 0
	}

	if uint32(newPos) > inode.Disk.Size {
		if !canWrite(entry.Mode) {
			newPos = int64(inode.Disk.Size)
		} else {
			target := uint32(newPos)
			if target > uint32(maxFilesize) {
				target = uint32(maxFilesize)
			}
			if err := fsys.resizeInode(inode, target); err != nil {
				return inode.Pos, err
			}
			newPos = int64(target)
		}
	}

	inode.Pos = uint32(newPos)
	return inode.Pos, nil
}

func (fsys *FS) checkFd(t *sched.TCB, fd int) (sched.OpenFile, error) {
	if fd < 0 || fd >= len(t.OpenFiles) || t.OpenFiles[fd].Inode == -1 {
		return sched.OpenFile{}, ErrBadFd
	}
	return t.OpenFiles[fd], nil
}

// Mkdir creates a new, empty directory at path.
func (fsys *FS) Mkdir(t *sched.TCB, path string) error {
	fsys.lock.Acquire()
	defer fsys.lock.Release()

	dir, base := splitPath(path)
	parent, err := fsys.Name2Inode(t.Cwd, dir)
	if err != nil {
		return err
	}
	if _, err := fsys.lookupEntry(parent, base); err == nil {
		return ErrExists
	}
	child, err := fsys.createDirectory(parent)
	if err != nil {
		return err
	}
	if err := fsys.createDirectoryEntry(parent, child, base); err != nil {
		fsys.freeInode(child)
		return err
	}
	return nil
}

// Chdir changes t's current working directory.
func (fsys *FS) Chdir(t *sched.TCB, path string) error {
	fsys.lock.Acquire()
	defer fsys.lock.Release()

	ino, err := fsys.Name2Inode(t.Cwd, path)
	if err != nil {
		return err
	}
	if fsys.inodes[ino].Disk.Type != TypeDir {
		return ErrNotDir
	}
	t.Cwd = ino
	return nil
}

// Rmdir removes the empty-or-not directory at path (non-empty
// directories are drained first, per spec section 4.5).
func (fsys *FS) Rmdir(t *sched.TCB, path string) error {
	fsys.lock.Acquire()
	defer fsys.lock.Release()

	dir, base := splitPath(path)
	parent, err := fsys.Name2Inode(t.Cwd, dir)
	if err != nil {
		return err
	}
	ino, err := fsys.lookupEntry(parent, base)
	if err != nil {
		return err
	}
	if fsys.inodes[ino].Disk.Type != TypeDir {
		return ErrNotDir
	}
	return fsys.RemoveDirEntry(parent, ino)
}

// Unlink removes the directory entry at path, which must not itself be
// a directory (use Rmdir for that).
func (fsys *FS) Unlink(t *sched.TCB, path string) error {
	fsys.lock.Acquire()
	defer fsys.lock.Release()

	dir, base := splitPath(path)
	parent, err := fsys.Name2Inode(t.Cwd, dir)
	if err != nil {
		return err
	}
	ino, err := fsys.lookupEntry(parent, base)
	if err != nil {
		return err
	}
	if fsys.inodes[ino].Disk.Type == TypeDir {
		return ErrIsDir
	}
	return fsys.RemoveDirEntry(parent, ino)
}

// Link creates newPath as an additional directory entry referencing
// existingPath's inode, incrementing its link count. Directories cannot
// be hard-linked.
func (fsys *FS) Link(t *sched.TCB, newPath, existingPath string) error {
	fsys.lock.Acquire()
	defer fsys.lock.Release()

	existing, err := fsys.Name2Inode(t.Cwd, existingPath)
	if err != nil {
		return err
	}
	if fsys.inodes[existing].Disk.Type == TypeDir {
		return ErrCrossLink
	}
	dir, base := splitPath(newPath)
	parent, err := fsys.Name2Inode(t.Cwd, dir)
	if err != nil {
		return err
	}
	return fsys.createDirectoryEntry(parent, existing, base)
}
