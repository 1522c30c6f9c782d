package fs

import "github.com/krihaa/minikernel/internal/sched"

// Stat is the information returned by fs.Stat, matching the `stat`
// syscall spec section 6 names without detailing.
type Stat struct {
	Type     InodeType
	Size     uint32
	NLinks   int16
	InodeNum int32
}

// Stat returns fd's inode metadata.
func (fsys *FS) Stat(t *sched.TCB, fd int) (Stat, error) {
	fsys.lock.Acquire()
	defer fsys.lock.Release()

	entry, err := fsys.checkFd(t, fd)
	if err != nil {
		return Stat{}, err
	}
	inode := &fsys.inodes[entry.Inode]
	return Stat{
		Type:     inode.Disk.Type,
		Size:     inode.Disk.Size,
		NLinks:   inode.Disk.NLinks,
		InodeNum: inode.InodeNum,
	}, nil
}
