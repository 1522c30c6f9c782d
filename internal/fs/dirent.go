package fs

import (
	"encoding/binary"
	"strings"

	"github.com/krihaa/minikernel/internal/kconfig"
)

// dirEntry is one record of a directory's data, per spec section 3.
type dirEntry struct {
	Name  [kconfig.MaxFilenameLen]byte
	Inode int32
}

const dirEntrySize = kconfig.MaxFilenameLen + 4

func (e *dirEntry) setName(name string) {
	e.Name = [kconfig.MaxFilenameLen]byte{}
	copy(e.Name[:], name)
}

func (e *dirEntry) nameString() string {
	i := 0
	for i < len(e.Name) && e.Name[i] != 0 {
		i++
	}
	return string(e.Name[:i])
}

func (e *dirEntry) encode(buf []byte) {
	copy(buf[:kconfig.MaxFilenameLen], e.Name[:])
	binary.LittleEndian.PutUint32(buf[kconfig.MaxFilenameLen:], uint32(e.Inode))
}

func (e *dirEntry) decode(buf []byte) {
	copy(e.Name[:], buf[:kconfig.MaxFilenameLen])
	e.Inode = int32(binary.LittleEndian.Uint32(buf[kconfig.MaxFilenameLen:]))
}

// Name2Inode resolves path against cwd, starting from the filesystem
// root when path begins with "/" -- the open-question fix for the
// source bug where an absolute path still resolved relative to cwd.
func (fsys *FS) Name2Inode(cwd int32, path string) (int32, error) {
	start := cwd
	if strings.HasPrefix(path, "/") {
		start = fsys.super.RootInode
		path = path[1:]
	}
	return fsys.resolve(start, path)
}

func (fsys *FS) resolve(dir int32, path string) (int32, error) {
	if path == "" {
		return dir, nil
	}
	name, rest := path, ""
	if i := strings.IndexByte(path, '/'); i >= 0 {
		name, rest = path[:i], path[i+1:]
	}
	if name == "" {
		return fsys.resolve(dir, rest)
	}
	child, err := fsys.lookupEntry(dir, name)
	if err != nil {
		return -1, err
	}
	return fsys.resolve(child, rest)
}

func (fsys *FS) lookupEntry(dir int32, name string) (int32, error) {
	dirInode := &fsys.inodes[dir]
	if dirInode.Disk.Type != TypeDir {
		return -1, ErrNotDir
	}
	var buf [dirEntrySize]byte
	count := int(dirInode.Disk.Size) / dirEntrySize
	for i := 0; i < count; i++ {
		if _, err := fsys.readAt(dirInode, buf[:], uint32(i*dirEntrySize)); err != nil {
			return -1, err
		}
		var e dirEntry
		e.decode(buf[:])
		if e.nameString() == name {
			return e.Inode, nil
		}
	}
	return -1, ErrNotFound
}

// createDirectory allocates a fresh directory inode and populates its
// "." and ".." entries, per spec section 4.5's create_directory. parent
// of -1 means this is the filesystem root, which is its own parent.
func (fsys *FS) createDirectory(parent int32) (int32, error) {
	idx, ok := fsys.inodeBmap.getFreeEntry(kconfig.MaxInodes)
	if !ok {
		return -1, ErrFull
	}
	fsys.inodes[idx] = newFreeInode(int32(idx))
	fsys.inodes[idx].Disk.Type = TypeDir

	self := parent
	if parent < 0 {
		self = int32(idx)
	}

	if err := fsys.createDirectoryEntry(int32(idx), int32(idx), "."); err != nil {
		fsys.freeInode(int32(idx))
		return -1, err
	}
	if err := fsys.createDirectoryEntry(int32(idx), self, ".."); err != nil {
		fsys.freeInode(int32(idx))
		return -1, err
	}
	if err := fsys.persistBitmap(inodeBitmapSector, &fsys.inodeBmap); err != nil {
		return -1, err
	}
	return int32(idx), nil
}

// createDirectoryEntry grows dir by one entry record and increments the
// target inode's link count, per spec section 4.5.
func (fsys *FS) createDirectoryEntry(dir, target int32, name string) error {
	if len(name) > kconfig.MaxFilenameLen {
		return ErrNameLen
	}
	dirInode := &fsys.inodes[dir]
	if dirInode.Disk.Type != TypeDir {
		return ErrNotDir
	}

	var e dirEntry
	e.setName(name)
	e.Inode = target
	var buf [dirEntrySize]byte
	e.encode(buf[:])

	if _, err := fsys.writeAt(dirInode, buf[:], dirInode.Disk.Size); err != nil {
		return err
	}
	fsys.inodes[target].Disk.NLinks++
	return fsys.persistInode(target)
}

// firstChildEntry returns the first entry of dir other than "." and
// "..", used by RemoveDirEntry to drain a directory before removing it.
func (fsys *FS) firstChildEntry(dir int32) (int32, bool, error) {
	dirInode := &fsys.inodes[dir]
	var buf [dirEntrySize]byte
	count := int(dirInode.Disk.Size) / dirEntrySize
	for i := 0; i < count; i++ {
		if _, err := fsys.readAt(dirInode, buf[:], uint32(i*dirEntrySize)); err != nil {
			return -1, false, err
		}
		var e dirEntry
		e.decode(buf[:])
		name := e.nameString()
		if name == "." || name == ".." {
			continue
		}
		return e.Inode, true, nil
	}
	return -1, false, nil
}

// removeOneEntry rebuilds dir's entry array with the first entry
// referencing id removed, per spec section 4.5's "rebuild dir's entries
// in place minus the first match".
func (fsys *FS) removeOneEntry(dir, id int32) error {
	dirInode := &fsys.inodes[dir]
	count := int(dirInode.Disk.Size) / dirEntrySize
	var buf [dirEntrySize]byte

	foundAt := -1
	for i := 0; i < count; i++ {
		if _, err := fsys.readAt(dirInode, buf[:], uint32(i*dirEntrySize)); err != nil {
			return err
		}
		var e dirEntry
		e.decode(buf[:])
		if e.Inode == id {
			foundAt = i
			break
		}
	}
	if foundAt == -1 {
		return ErrNotFound
	}

	for i := foundAt; i < count-1; i++ {
		if _, err := fsys.readAt(dirInode, buf[:], uint32((i+1)*dirEntrySize)); err != nil {
			return err
		}
		if _, err := fsys.writeAt(dirInode, buf[:], uint32(i*dirEntrySize)); err != nil {
			return err
		}
	}
	return fsys.resizeInode(dirInode, uint32((count-1)*dirEntrySize))
}

// removalFrame is one level of the explicit work-stack RemoveDirEntry
// uses in place of recursion, per the decision to rewrite the original
// recursive remove_directory_entry iteratively.
type removalFrame struct {
	dir, id int32
}

// RemoveDirEntry removes id's entry from dir, recursively draining id
// first if it is a non-empty directory, per spec section 4.5's
// remove_directory_entry. The recursion is flattened into an explicit
// stack so removing a deep directory tree never grows the Go call
// stack.
func (fsys *FS) RemoveDirEntry(dir, id int32) error {
	stack := []removalFrame{{dir: dir, id: id}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		target := &fsys.inodes[top.id]

		if target.Disk.Type == TypeDir {
			child, has, err := fsys.firstChildEntry(top.id)
			if err != nil {
				return err
			}
			if has {
				stack = append(stack, removalFrame{dir: top.id, id: child})
				continue
			}
		}

		if err := fsys.removeOneEntry(top.dir, top.id); err != nil {
			return err
		}
		if err := fsys.reduceLinks(top.id); err != nil {
			return err
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

// reduceLinks decrements id's link count, freeing the inode once it
// drops to zero or the inode is a directory, per spec section 4.5.
func (fsys *FS) reduceLinks(id int32) error {
	inode := &fsys.inodes[id]
	inode.Disk.NLinks--
	if inode.Disk.NLinks <= 0 || inode.Disk.Type == TypeDir {
		return fsys.freeInode(id)
	}
	return fsys.persistInode(id)
}

func (fsys *FS) freeInode(id int32) error {
	inode := &fsys.inodes[id]
	for slot := range inode.Disk.Direct {
		if inode.Disk.Direct[slot] != -1 {
			fsys.dataBmap.freeBitmapEntry(int(inode.Disk.Direct[slot]))
			inode.Disk.Direct[slot] = -1
		}
	}
	inode.Disk.Size = 0
	inode.Disk.NLinks = 0
	if err := fsys.persistBitmap(dataBitmapSector, &fsys.dataBmap); err != nil {
		return err
	}
	fsys.inodeBmap.freeBitmapEntry(int(id))
	if err := fsys.persistBitmap(inodeBitmapSector, &fsys.inodeBmap); err != nil {
		return err
	}
	return fsys.persistInode(id)
}
