package fs

import (
	"bytes"
	"testing"

	"github.com/krihaa/minikernel/internal/blockdev"
	"github.com/krihaa/minikernel/internal/kconfig"
	"github.com/krihaa/minikernel/internal/sched"
)

const testDataBlocks = 64

func newTestFS(t *testing.T) *FS {
	t.Helper()
	dev := blockdev.NewMemDisk(256)
	fsys, err := Mkfs(dev, testDataBlocks)
	if err != nil {
		t.Fatalf("Mkfs: %v", err)
	}
	return fsys
}

func newTestTask(fsys *FS) *sched.TCB {
	t := &sched.TCB{Cwd: fsys.RootInode()}
	for i := range t.OpenFiles {
		t.OpenFiles[i].Inode = -1
	}
	return t
}

func TestMkfsCreatesRootDirectoryWithDotEntries(t *testing.T) {
	fsys := newTestFS(t)
	root := fsys.RootInode()
	if fsys.inodes[root].Disk.Type != TypeDir {
		t.Fatalf("expected root inode to be a directory")
	}
	self, err := fsys.lookupEntry(root, ".")
	if err != nil || self != root {
		t.Fatalf("expected \".\" to resolve to root, got %v err=%v", self, err)
	}
	parent, err := fsys.lookupEntry(root, "..")
	if err != nil || parent != root {
		t.Fatalf("expected \"..\" to resolve to root at the top, got %v err=%v", parent, err)
	}
}

func TestMountReusesExistingFormatWithoutReformatting(t *testing.T) {
	dev := blockdev.NewMemDisk(256)
	fsys1, err := Mkfs(dev, testDataBlocks)
	if err != nil {
		t.Fatalf("Mkfs: %v", err)
	}
	task := newTestTask(fsys1)
	fd, err := fsys1.Open(task, "hello", ModeWrOnly|ModeCreat)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	fsys1.Write(task, fd, []byte("hi"))
	fsys1.Close(task, fd)

	fsys2, err := Mount(dev, testDataBlocks)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	task2 := newTestTask(fsys2)
	fd2, err := fsys2.Open(task2, "hello", ModeRdOnly)
	if err != nil {
		t.Fatalf("expected file to survive remount, Open: %v", err)
	}
	buf := make([]byte, 2)
	if _, err := fsys2.Read(task2, fd2, buf); err != nil || !bytes.Equal(buf, []byte("hi")) {
		t.Fatalf("expected remounted content to match, got %q err=%v", buf, err)
	}
}

func TestWriteThenReadRoundTripsAcrossMultipleBlocks(t *testing.T) {
	fsys := newTestFS(t)
	task := newTestTask(fsys)

	fd, err := fsys.Open(task, "big", ModeRdWr|ModeCreat)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data := make([]byte, kconfig.BlockSize*3+17)
	for i := range data {
		data[i] = byte(i % 251)
	}
	n, err := fsys.Write(task, fd, data)
	if err != nil || n != len(data) {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}
	if _, err := fsys.Lseek(task, fd, 0, SeekSet); err != nil {
		t.Fatalf("Lseek: %v", err)
	}
	out := make([]byte, len(data))
	n, err = fsys.Read(task, fd, out)
	if err != nil || n != len(data) {
		t.Fatalf("Read: n=%d err=%v", n, err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch")
	}
}

func TestWriteBeyondMaxFilesizeIsClamped(t *testing.T) {
	fsys := newTestFS(t)
	task := newTestTask(fsys)
	fd, _ := fsys.Open(task, "clamped", ModeRdWr|ModeCreat)

	huge := make([]byte, maxFilesize+500)
	n, err := fsys.Write(task, fd, huge)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != maxFilesize {
		t.Fatalf("expected write clamped to max_filesize, got %d", n)
	}
}

func TestResizeInodeFreesBlocksOnShrink(t *testing.T) {
	fsys := newTestFS(t)
	task := newTestTask(fsys)
	fd, _ := fsys.Open(task, "shrink", ModeRdWr|ModeCreat)
	fsys.Write(task, fd, make([]byte, kconfig.BlockSize*4))

	inode := &fsys.inodes[task.OpenFiles[fd].Inode]
	usedBefore := 0
	for i := 0; i < testDataBlocks; i++ {
		if fsys.dataBmap.test(i) {
			usedBefore++
		}
	}
	if err := fsys.resizeInode(inode, kconfig.BlockSize); err != nil {
		t.Fatalf("resizeInode: %v", err)
	}
	usedAfter := 0
	for i := 0; i < testDataBlocks; i++ {
		if fsys.dataBmap.test(i) {
			usedAfter++
		}
	}
	if usedAfter >= usedBefore {
		t.Fatalf("expected shrink to free blocks: before=%d after=%d", usedBefore, usedAfter)
	}
}

func TestMkdirChdirAndNestedPathResolution(t *testing.T) {
	fsys := newTestFS(t)
	task := newTestTask(fsys)

	if err := fsys.Mkdir(task, "a"); err != nil {
		t.Fatalf("Mkdir a: %v", err)
	}
	if err := fsys.Mkdir(task, "a/b"); err != nil {
		t.Fatalf("Mkdir a/b: %v", err)
	}
	if err := fsys.Chdir(task, "a/b"); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	ino, err := fsys.Name2Inode(task.Cwd, "../../a")
	if err != nil {
		t.Fatalf("Name2Inode ../../a: %v", err)
	}
	want, _ := fsys.Name2Inode(fsys.RootInode(), "a")
	if ino != want {
		t.Fatalf("expected ../../a to resolve back to /a, got %d want %d", ino, want)
	}

	abs, err := fsys.Name2Inode(task.Cwd, "/a/b")
	if err != nil || abs != task.Cwd {
		t.Fatalf("expected absolute path to resolve from root, got %d err=%v", abs, err)
	}
}

func TestRmdirRemovesNestedTreeIteratively(t *testing.T) {
	fsys := newTestFS(t)
	task := newTestTask(fsys)

	fsys.Mkdir(task, "x")
	fsys.Mkdir(task, "x/y")
	fsys.Mkdir(task, "x/y/z")
	fd, _ := fsys.Open(task, "x/y/z/leaf", ModeWrOnly|ModeCreat)
	fsys.Close(task, fd)

	if err := fsys.Rmdir(task, "x"); err != nil {
		t.Fatalf("Rmdir: %v", err)
	}
	if _, err := fsys.Name2Inode(fsys.RootInode(), "x"); err != ErrNotFound {
		t.Fatalf("expected x to be gone, got err=%v", err)
	}
}

func TestUnlinkRejectsDirectoryAndRmdirRejectsFile(t *testing.T) {
	fsys := newTestFS(t)
	task := newTestTask(fsys)

	fsys.Mkdir(task, "dir")
	fd, _ := fsys.Open(task, "file", ModeWrOnly|ModeCreat)
	fsys.Close(task, fd)

	if err := fsys.Unlink(task, "dir"); err != ErrIsDir {
		t.Fatalf("expected ErrIsDir, got %v", err)
	}
	if err := fsys.Rmdir(task, "file"); err != ErrNotDir {
		t.Fatalf("expected ErrNotDir, got %v", err)
	}
}

func TestLinkAddsEntryAndIncrementsNLinks(t *testing.T) {
	fsys := newTestFS(t)
	task := newTestTask(fsys)

	fd, _ := fsys.Open(task, "original", ModeWrOnly|ModeCreat)
	fsys.Write(task, fd, []byte("data"))
	fsys.Close(task, fd)

	ino, _ := fsys.Name2Inode(task.Cwd, "original")
	if err := fsys.Link(task, "alias", "original"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if fsys.inodes[ino].Disk.NLinks != 2 {
		t.Fatalf("expected NLinks=2 after Link, got %d", fsys.inodes[ino].Disk.NLinks)
	}

	fd2, err := fsys.Open(task, "alias", ModeRdOnly)
	if err != nil {
		t.Fatalf("Open alias: %v", err)
	}
	buf := make([]byte, 4)
	fsys.Read(task, fd2, buf)
	if string(buf) != "data" {
		t.Fatalf("expected alias to read the same content, got %q", buf)
	}
}

func TestOpenWithoutCreatOnMissingFileFails(t *testing.T) {
	fsys := newTestFS(t)
	task := newTestTask(fsys)
	if _, err := fsys.Open(task, "nope", ModeRdOnly); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadWriteModeEnforcement(t *testing.T) {
	fsys := newTestFS(t)
	task := newTestTask(fsys)
	fd, _ := fsys.Open(task, "ro", ModeRdOnly|ModeCreat)

	if _, err := fsys.Write(task, fd, []byte("x")); err != ErrMode {
		t.Fatalf("expected ErrMode on write to read-only fd, got %v", err)
	}
}

func TestStatReportsInodeMetadata(t *testing.T) {
	fsys := newTestFS(t)
	task := newTestTask(fsys)
	fd, _ := fsys.Open(task, "statted", ModeRdWr|ModeCreat)
	fsys.Write(task, fd, []byte("abcde"))

	st, err := fsys.Stat(task, fd)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Type != TypeFile || st.Size != 5 || st.NLinks != 1 {
		t.Fatalf("unexpected stat: %+v", st)
	}
}
