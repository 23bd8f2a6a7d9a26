// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memfs_test

import (
	"os"
	"testing"
	"time"

	"github.com/asyncfs/fuse"
	"github.com/asyncfs/fuse/fusetesting"
	"github.com/asyncfs/fuse/samples/memfs"
	"github.com/jacobsa/timeutil"
	"github.com/kylelemons/godebug/pretty"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"golang.org/x/net/context"
)

func TestMemFS(t *testing.T) { RunTests(t) }

const testUid = 123
const testGid = 456

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type MemFSTest struct {
	ctx    context.Context
	clock  timeutil.SimulatedClock
	server fuse.RawFileSystem
}

func init() { RegisterTestSuite(&MemFSTest{}) }

func (t *MemFSTest) SetUp(ti *TestInfo) {
	t.ctx = context.Background()

	// Set up a fixed, non-zero time.
	t.clock.SetTime(time.Now())

	t.server = fuse.NewRawFileSystem(memfs.NewMemFS(&t.clock, testUid, testGid))
	AssertEq(nil, t.server.Init(t.ctx, &fuse.InitConfig{}))
}

func (t *MemFSTest) TearDown() {
	t.server.Destroy()
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

var nextRequestID uint64

func header() fuse.RequestHeader {
	nextRequestID++
	return fuse.RequestHeader{
		ID:  nextRequestID,
		Uid: testUid,
		Gid: testGid,
	}
}

func (t *MemFSTest) lookUp(
	parent fuse.InodeID,
	name string) (*fuse.ChildInodeEntry, error) {
	reply := fusetesting.NewReplyRecorder[fuse.ChildInodeEntry]()
	t.server.LookUpInode(
		t.ctx,
		&fuse.LookUpInodeRequest{Header: header(), Parent: parent, Name: name},
		reply)

	return reply.Wait()
}

func (t *MemFSTest) getAttributes(
	inode fuse.InodeID) (*fuse.AttributesResponse, error) {
	reply := fusetesting.NewReplyRecorder[fuse.AttributesResponse]()
	t.server.GetInodeAttributes(
		t.ctx,
		&fuse.GetInodeAttributesRequest{Header: header(), Inode: inode},
		reply)

	return reply.Wait()
}

func (t *MemFSTest) mkDir(
	parent fuse.InodeID,
	name string) (*fuse.ChildInodeEntry, error) {
	reply := fusetesting.NewReplyRecorder[fuse.ChildInodeEntry]()
	t.server.MkDir(
		t.ctx,
		&fuse.MkDirRequest{
			Header: header(),
			Parent: parent,
			Name:   name,
			Mode:   0755 | os.ModeDir,
		},
		reply)

	return reply.Wait()
}

func (t *MemFSTest) createFile(
	parent fuse.InodeID,
	name string) (*fuse.CreateFileResponse, error) {
	reply := fusetesting.NewReplyRecorder[fuse.CreateFileResponse]()
	t.server.CreateFile(
		t.ctx,
		&fuse.CreateFileRequest{
			Header: header(),
			Parent: parent,
			Name:   name,
			Mode:   0644,
		},
		reply)

	return reply.Wait()
}

func (t *MemFSTest) writeAt(
	inode fuse.InodeID,
	offset int64,
	data string) error {
	reply := fusetesting.NewReplyRecorder[fuse.WriteFileResponse]()
	t.server.WriteFile(
		t.ctx,
		&fuse.WriteFileRequest{
			Header: header(),
			Inode:  inode,
			Offset: offset,
			Data:   []byte(data),
		},
		reply)

	resp, err := reply.Wait()
	if err == nil {
		AssertEq(len(data), resp.Size)
	}

	return err
}

func (t *MemFSTest) readAt(
	inode fuse.InodeID,
	offset int64,
	size int) (string, error) {
	reply := fusetesting.NewReplyRecorder[fuse.ReadFileResponse]()
	t.server.ReadFile(
		t.ctx,
		&fuse.ReadFileRequest{
			Header: header(),
			Inode:  inode,
			Offset: offset,
			Size:   size,
		},
		reply)

	resp, err := reply.Wait()
	if err != nil {
		return "", err
	}

	return string(resp.Data), nil
}

// Read a single batch of entries, with the given byte budget.
func (t *MemFSTest) readDir(
	inode fuse.InodeID,
	offset fuse.DirOffset,
	size int) ([]fuse.Dirent, error) {
	reply := fusetesting.NewDirectoryReplyRecorder(size)
	t.server.ReadDir(
		t.ctx,
		&fuse.ReadDirRequest{
			Header: header(),
			Inode:  inode,
			Offset: offset,
			Size:   size,
		},
		reply)

	entries, err := reply.Wait()
	AssertEq(1, reply.ReplyCount())
	return entries, err
}

// Read the whole directory the way the kernel does: batch by batch,
// resuming from the offset of the last entry seen.
func (t *MemFSTest) readDirAll(
	inode fuse.InodeID,
	batchSize int) []fuse.Dirent {
	var all []fuse.Dirent
	var offset fuse.DirOffset

	for {
		entries, err := t.readDir(inode, offset, batchSize)
		AssertEq(nil, err)

		if len(entries) == 0 {
			return all
		}

		all = append(all, entries...)
		offset = entries[len(entries)-1].Offset
	}
}

func (t *MemFSTest) unlink(parent fuse.InodeID, name string) error {
	reply := fusetesting.NewEmptyReplyRecorder()
	t.server.Unlink(
		t.ctx,
		&fuse.UnlinkRequest{Header: header(), Parent: parent, Name: name},
		reply)

	return reply.Wait()
}

func (t *MemFSTest) rename(
	oldParent fuse.InodeID, oldName string,
	newParent fuse.InodeID, newName string,
	flags uint32) error {
	reply := fusetesting.NewEmptyReplyRecorder()
	t.server.Rename(
		t.ctx,
		&fuse.RenameRequest{
			Header:    header(),
			OldParent: oldParent,
			OldName:   oldName,
			NewParent: newParent,
			NewName:   newName,
			Flags:     flags,
		},
		reply)

	return reply.Wait()
}

func names(entries []fuse.Dirent) (result []string) {
	for _, e := range entries {
		result = append(result, e.Name)
	}

	return
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *MemFSTest) ReadWriteRoundTrip() {
	created, err := t.createFile(fuse.RootInodeID, "foo")
	AssertEq(nil, err)
	fooID := created.Entry.Child

	AssertEq(nil, t.writeAt(fooID, 0, "taco"))

	// Read it back, including a read past EOF.
	contents, err := t.readAt(fooID, 0, 1024)
	AssertEq(nil, err)
	ExpectEq("taco", contents)

	contents, err = t.readAt(fooID, 2, 1024)
	AssertEq(nil, err)
	ExpectEq("co", contents)

	// A lookup agrees about the size and ownership.
	entry, err := t.lookUp(fuse.RootInodeID, "foo")
	AssertEq(nil, err)
	ExpectEq(fooID, entry.Child)
	ExpectEq(4, entry.Attributes.Size)
	ExpectEq(testUid, entry.Attributes.Uid)
	ExpectEq(testGid, entry.Attributes.Gid)
}

func (t *MemFSTest) WritesBeyondEOFZeroFill() {
	created, err := t.createFile(fuse.RootInodeID, "foo")
	AssertEq(nil, err)
	fooID := created.Entry.Child

	AssertEq(nil, t.writeAt(fooID, 4, "taco"))

	contents, err := t.readAt(fooID, 0, 1024)
	AssertEq(nil, err)
	ExpectEq("\x00\x00\x00\x00taco", contents)
}

func (t *MemFSTest) LookUpUnknownName() {
	_, err := t.lookUp(fuse.RootInodeID, "nope")
	ExpectEq(fuse.ENOENT, fuse.ErrnoFor(err))
}

func (t *MemFSTest) ReadDirInBatches() {
	// Create a handful of children.
	wantNames := []string{"apple", "banana", "cherry", "durian", "elderberry"}
	for _, n := range wantNames {
		_, err := t.createFile(fuse.RootInodeID, n)
		AssertEq(nil, err)
	}

	// Read with a budget that fits roughly two entries per batch, resuming
	// by offset. We must see each name exactly once.
	entries := t.readDirAll(fuse.RootInodeID, 96)
	AssertEq(len(wantNames), len(entries))

	seen := make(map[string]int)
	for _, e := range entries {
		seen[e.Name]++
	}

	for _, n := range wantNames {
		ExpectEq(1, seen[n], "name: %s", n)
	}

	// An unlimited read agrees.
	ExpectThat(names(t.readDirAll(fuse.RootInodeID, 0)), DeepEquals(wantNames))
}

func (t *MemFSTest) ReadDirResumeAcrossUnlink() {
	for _, n := range []string{"a", "b", "c"} {
		_, err := t.createFile(fuse.RootInodeID, n)
		AssertEq(nil, err)
	}

	// Read just the first entry.
	first, err := t.readDir(fuse.RootInodeID, 0, 40)
	AssertEq(nil, err)
	AssertEq(1, len(first))
	AssertEq("a", first[0].Name)

	// Unlink the middle entry, then resume. The offsets of the survivors
	// must not have shifted, so we see "c" and never see "b" or a
	// duplicate.
	AssertEq(nil, t.unlink(fuse.RootInodeID, "b"))

	rest, err := t.readDir(fuse.RootInodeID, first[0].Offset, 0)
	AssertEq(nil, err)
	ExpectThat(names(rest), DeepEquals([]string{"c"}))
}

func (t *MemFSTest) MkDirThenRmDir() {
	entry, err := t.mkDir(fuse.RootInodeID, "dir")
	AssertEq(nil, err)
	ExpectTrue(entry.Attributes.Mode.IsDir())

	// A non-empty directory refuses to die.
	_, err = t.createFile(entry.Child, "child")
	AssertEq(nil, err)

	reply := fusetesting.NewEmptyReplyRecorder()
	t.server.RmDir(
		t.ctx,
		&fuse.RmDirRequest{Header: header(), Parent: fuse.RootInodeID, Name: "dir"},
		reply)
	ExpectEq(fuse.ENOTEMPTY, fuse.ErrnoFor(reply.Wait()))

	// Empty it out and try again.
	AssertEq(nil, t.unlink(entry.Child, "child"))

	reply = fusetesting.NewEmptyReplyRecorder()
	t.server.RmDir(
		t.ctx,
		&fuse.RmDirRequest{Header: header(), Parent: fuse.RootInodeID, Name: "dir"},
		reply)
	AssertEq(nil, reply.Wait())

	_, err = t.lookUp(fuse.RootInodeID, "dir")
	ExpectEq(fuse.ENOENT, fuse.ErrnoFor(err))
}

func (t *MemFSTest) RenameReplacesAndRespectsNoReplace() {
	createdA, err := t.createFile(fuse.RootInodeID, "a")
	AssertEq(nil, err)
	AssertEq(nil, t.writeAt(createdA.Entry.Child, 0, "from a"))

	_, err = t.createFile(fuse.RootInodeID, "b")
	AssertEq(nil, err)

	// RENAME_NOREPLACE refuses to clobber.
	err = t.rename(fuse.RootInodeID, "a", fuse.RootInodeID, "b", 0x1)
	ExpectEq(fuse.EEXIST, fuse.ErrnoFor(err))

	// A plain rename replaces atomically.
	AssertEq(nil, t.rename(fuse.RootInodeID, "a", fuse.RootInodeID, "b", 0))

	_, err = t.lookUp(fuse.RootInodeID, "a")
	ExpectEq(fuse.ENOENT, fuse.ErrnoFor(err))

	entry, err := t.lookUp(fuse.RootInodeID, "b")
	AssertEq(nil, err)

	contents, err := t.readAt(entry.Child, 0, 1024)
	AssertEq(nil, err)
	ExpectEq("from a", contents)
}

func (t *MemFSTest) RenameOntoItselfIsANoOp() {
	created, err := t.createFile(fuse.RootInodeID, "a")
	AssertEq(nil, err)
	inodeID := created.Entry.Child
	AssertEq(nil, t.writeAt(inodeID, 0, "taco"))

	// Renaming a name onto itself succeeds and changes nothing.
	AssertEq(nil, t.rename(fuse.RootInodeID, "a", fuse.RootInodeID, "a", 0))

	entry, err := t.lookUp(fuse.RootInodeID, "a")
	AssertEq(nil, err)
	ExpectEq(inodeID, entry.Child)

	contents, err := t.readAt(inodeID, 0, 1024)
	AssertEq(nil, err)
	ExpectEq("taco", contents)

	// With RENAME_NOREPLACE the target still counts as existing.
	err = t.rename(fuse.RootInodeID, "a", fuse.RootInodeID, "a", 0x1)
	ExpectEq(fuse.EEXIST, fuse.ErrnoFor(err))
}

func (t *MemFSTest) RenameBetweenHardLinksLeavesBoth() {
	created, err := t.createFile(fuse.RootInodeID, "one")
	AssertEq(nil, err)
	inodeID := created.Entry.Child

	linkReply := fusetesting.NewReplyRecorder[fuse.ChildInodeEntry]()
	t.server.CreateLink(
		t.ctx,
		&fuse.CreateLinkRequest{
			Header: header(),
			Target: inodeID,
			Parent: fuse.RootInodeID,
			Name:   "two",
		},
		linkReply)

	linked, err := linkReply.Wait()
	AssertEq(nil, err)
	AssertEq(2, linked.Attributes.Nlink)

	// rename(2): when both names are links to the same file, do nothing and
	// leave both links in place.
	AssertEq(nil, t.rename(fuse.RootInodeID, "one", fuse.RootInodeID, "two", 0))

	one, err := t.lookUp(fuse.RootInodeID, "one")
	AssertEq(nil, err)
	two, err := t.lookUp(fuse.RootInodeID, "two")
	AssertEq(nil, err)

	ExpectEq(inodeID, one.Child)
	ExpectEq(inodeID, two.Child)
	ExpectEq(2, one.Attributes.Nlink)
	ExpectEq(2, two.Attributes.Nlink)
}

func (t *MemFSTest) RenameExchange() {
	a, err := t.createFile(fuse.RootInodeID, "a")
	AssertEq(nil, err)
	b, err := t.createFile(fuse.RootInodeID, "b")
	AssertEq(nil, err)

	AssertEq(nil, t.rename(fuse.RootInodeID, "a", fuse.RootInodeID, "b", 0x2))

	entryA, err := t.lookUp(fuse.RootInodeID, "a")
	AssertEq(nil, err)
	entryB, err := t.lookUp(fuse.RootInodeID, "b")
	AssertEq(nil, err)

	ExpectEq(b.Entry.Child, entryA.Child)
	ExpectEq(a.Entry.Child, entryB.Child)
}

func (t *MemFSTest) HardLinks() {
	created, err := t.createFile(fuse.RootInodeID, "one")
	AssertEq(nil, err)
	inodeID := created.Entry.Child
	AssertEq(nil, t.writeAt(inodeID, 0, "shared"))

	// Link it under a second name.
	reply := fusetesting.NewReplyRecorder[fuse.ChildInodeEntry]()
	t.server.CreateLink(
		t.ctx,
		&fuse.CreateLinkRequest{
			Header: header(),
			Target: inodeID,
			Parent: fuse.RootInodeID,
			Name:   "two",
		},
		reply)

	linked, err := reply.Wait()
	AssertEq(nil, err)
	ExpectEq(inodeID, linked.Child)
	ExpectEq(2, linked.Attributes.Nlink)

	// Both names see identical attributes.
	one, err := t.lookUp(fuse.RootInodeID, "one")
	AssertEq(nil, err)
	two, err := t.lookUp(fuse.RootInodeID, "two")
	AssertEq(nil, err)

	ExpectEq("", pretty.Compare(one.Attributes, two.Attributes))

	// Unlinking one name leaves the other intact.
	AssertEq(nil, t.unlink(fuse.RootInodeID, "one"))

	attrs, err := t.getAttributes(inodeID)
	AssertEq(nil, err)
	ExpectEq(1, attrs.Attributes.Nlink)

	contents, err := t.readAt(inodeID, 0, 1024)
	AssertEq(nil, err)
	ExpectEq("shared", contents)
}

func (t *MemFSTest) SymlinkRoundTrip() {
	reply := fusetesting.NewReplyRecorder[fuse.ChildInodeEntry]()
	t.server.CreateSymlink(
		t.ctx,
		&fuse.CreateSymlinkRequest{
			Header: header(),
			Parent: fuse.RootInodeID,
			Name:   "link",
			Target: "/over/there",
		},
		reply)

	entry, err := reply.Wait()
	AssertEq(nil, err)
	ExpectEq(os.ModeSymlink, entry.Attributes.Mode&os.ModeSymlink)

	readReply := fusetesting.NewReplyRecorder[fuse.ReadSymlinkResponse]()
	t.server.ReadSymlink(
		t.ctx,
		&fuse.ReadSymlinkRequest{Header: header(), Inode: entry.Child},
		readReply)

	resp, err := readReply.Wait()
	AssertEq(nil, err)
	ExpectEq("/over/there", resp.Target)
}

func (t *MemFSTest) XattrProtocol() {
	created, err := t.createFile(fuse.RootInodeID, "foo")
	AssertEq(nil, err)
	fooID := created.Entry.Child

	set := func(name, value string, flags uint32) error {
		reply := fusetesting.NewEmptyReplyRecorder()
		t.server.SetXattr(
			t.ctx,
			&fuse.SetXattrRequest{
				Header: header(),
				Inode:  fooID,
				Name:   name,
				Value:  []byte(value),
				Flags:  flags,
			},
			reply)
		return reply.Wait()
	}

	get := func(name string, size uint32) (*fuse.XattrResponse, error) {
		reply := fusetesting.NewReplyRecorder[fuse.XattrResponse]()
		t.server.GetXattr(
			t.ctx,
			&fuse.GetXattrRequest{
				Header: header(),
				Inode:  fooID,
				Name:   name,
				Size:   size,
			},
			reply)
		return reply.Wait()
	}

	AssertEq(nil, set("user.taco", "carnitas", 0))

	// Probe for the size with a zero-length buffer.
	resp, err := get("user.taco", 0)
	AssertEq(nil, err)
	ExpectEq(len("carnitas"), resp.Size)
	ExpectEq(0, len(resp.Data))

	// A buffer that is too small yields ERANGE.
	_, err = get("user.taco", 3)
	ExpectEq(fuse.ERANGE, fuse.ErrnoFor(err))

	// An adequate buffer yields the value.
	resp, err = get("user.taco", 64)
	AssertEq(nil, err)
	ExpectEq("carnitas", string(resp.Data))

	// Creation flags.
	ExpectEq(fuse.EEXIST, fuse.ErrnoFor(set("user.taco", "x", 0x1)))  // XATTR_CREATE
	ExpectEq(fuse.ENOATTR, fuse.ErrnoFor(set("user.nope", "x", 0x2))) // XATTR_REPLACE

	// Listing contains the name, NUL-terminated.
	listReply := fusetesting.NewReplyRecorder[fuse.XattrResponse]()
	t.server.ListXattr(
		t.ctx,
		&fuse.ListXattrRequest{Header: header(), Inode: fooID, Size: 1024},
		listReply)

	resp, err = listReply.Wait()
	AssertEq(nil, err)
	ExpectEq("user.taco\x00", string(resp.Data))

	// Removal, and the error for removing again.
	removeReply := fusetesting.NewEmptyReplyRecorder()
	t.server.RemoveXattr(
		t.ctx,
		&fuse.RemoveXattrRequest{Header: header(), Inode: fooID, Name: "user.taco"},
		removeReply)
	AssertEq(nil, removeReply.Wait())

	_, err = get("user.taco", 0)
	ExpectEq(fuse.ENOATTR, fuse.ErrnoFor(err))
}

func (t *MemFSTest) LSeekDataAndHole() {
	created, err := t.createFile(fuse.RootInodeID, "foo")
	AssertEq(nil, err)
	fooID := created.Entry.Child
	AssertEq(nil, t.writeAt(fooID, 0, "0123456789"))

	seek := func(offset int64, whence uint32) (int64, error) {
		reply := fusetesting.NewReplyRecorder[fuse.LSeekResponse]()
		t.server.LSeek(
			t.ctx,
			&fuse.LSeekRequest{
				Header: header(),
				Inode:  fooID,
				Offset: offset,
				Whence: whence,
			},
			reply)

		resp, err := reply.Wait()
		if err != nil {
			return 0, err
		}
		return resp.Offset, nil
	}

	// Everything up to EOF is data; the only hole is the implicit one at
	// EOF.
	offset, err := seek(3, fuse.SeekData)
	AssertEq(nil, err)
	ExpectEq(3, offset)

	offset, err = seek(3, fuse.SeekHole)
	AssertEq(nil, err)
	ExpectEq(10, offset)

	_, err = seek(10, fuse.SeekData)
	ExpectEq(fuse.ENXIO, fuse.ErrnoFor(err))
}

func (t *MemFSTest) FallocateExtends() {
	created, err := t.createFile(fuse.RootInodeID, "foo")
	AssertEq(nil, err)
	fooID := created.Entry.Child

	fallocate := func(offset, length int64, mode uint32) error {
		reply := fusetesting.NewEmptyReplyRecorder()
		t.server.Fallocate(
			t.ctx,
			&fuse.FallocateRequest{
				Header: header(),
				Inode:  fooID,
				Offset: offset,
				Length: length,
				Mode:   mode,
			},
			reply)
		return reply.Wait()
	}

	AssertEq(nil, fallocate(0, 100, 0))

	attrs, err := t.getAttributes(fooID)
	AssertEq(nil, err)
	ExpectEq(100, attrs.Attributes.Size)

	// Punching holes isn't supported.
	ExpectEq(fuse.EOPNOTSUPP, fuse.ErrnoFor(fallocate(0, 10, 0x3)))
}

func (t *MemFSTest) CopyFileRange() {
	src, err := t.createFile(fuse.RootInodeID, "src")
	AssertEq(nil, err)
	dst, err := t.createFile(fuse.RootInodeID, "dst")
	AssertEq(nil, err)

	AssertEq(nil, t.writeAt(src.Entry.Child, 0, "enchilada"))

	reply := fusetesting.NewReplyRecorder[fuse.CopyFileRangeResponse]()
	t.server.CopyFileRange(
		t.ctx,
		&fuse.CopyFileRangeRequest{
			Header:    header(),
			SrcInode:  src.Entry.Child,
			SrcOffset: 2,
			DstInode:  dst.Entry.Child,
			DstOffset: 0,
			Length:    1024,
		},
		reply)

	resp, err := reply.Wait()
	AssertEq(nil, err)

	// Clipped at the source's EOF.
	ExpectEq(uint64(len("enchilada")-2), resp.Size)

	contents, err := t.readAt(dst.Entry.Child, 0, 1024)
	AssertEq(nil, err)
	ExpectEq("chilada", contents)
}

func (t *MemFSTest) ByteRangeLocks() {
	created, err := t.createFile(fuse.RootInodeID, "foo")
	AssertEq(nil, err)
	fooID := created.Entry.Child

	const owner1 = 1001
	const owner2 = 1002

	setLock := func(owner uint64, lock fuse.FileLock) error {
		reply := fusetesting.NewEmptyReplyRecorder()
		t.server.SetFileLock(
			t.ctx,
			&fuse.SetFileLockRequest{
				Header: header(),
				Inode:  fooID,
				Owner:  owner,
				Lock:   lock,
			},
			reply)
		return reply.Wait()
	}

	getLock := func(owner uint64, lock fuse.FileLock) fuse.FileLock {
		reply := fusetesting.NewReplyRecorder[fuse.GetFileLockResponse]()
		t.server.GetFileLock(
			t.ctx,
			&fuse.GetFileLockRequest{
				Header: header(),
				Inode:  fooID,
				Owner:  owner,
				Lock:   lock,
			},
			reply)

		resp, err := reply.Wait()
		AssertEq(nil, err)
		return resp.Lock
	}

	wholeFile := fuse.FileLock{Start: 0, End: ^uint64(0), Type: fuse.WriteLock}

	// Owner 1 takes a write lock.
	AssertEq(nil, setLock(owner1, wholeFile))

	// Owner 2 sees the conflict, and can't take its own lock.
	conflict := getLock(owner2, wholeFile)
	ExpectEq(fuse.WriteLock, conflict.Type)

	err = setLock(owner2, wholeFile)
	ExpectEq(fuse.EAGAIN, fuse.ErrnoFor(err))

	// A flush by owner 1 drops its locks, unblocking owner 2.
	flushReply := fusetesting.NewEmptyReplyRecorder()
	t.server.FlushFile(
		t.ctx,
		&fuse.FlushFileRequest{Header: header(), Inode: fooID, LockOwner: owner1},
		flushReply)
	AssertEq(nil, flushReply.Wait())

	ExpectEq(fuse.Unlock, getLock(owner2, wholeFile).Type)
	ExpectEq(nil, setLock(owner2, wholeFile))
}

func (t *MemFSTest) StatFSReflectsUnlinkAndForget() {
	countFiles := func() uint64 {
		reply := fusetesting.NewReplyRecorder[fuse.StatFSResponse]()
		t.server.StatFS(
			t.ctx,
			&fuse.StatFSRequest{Header: header(), Inode: fuse.RootInodeID},
			reply)

		resp, err := reply.Wait()
		AssertEq(nil, err)
		return resp.Files
	}

	before := countFiles()

	created, err := t.createFile(fuse.RootInodeID, "foo")
	AssertEq(nil, err)
	AssertEq(before+1, countFiles())

	// Unlinking alone doesn't free the inode: the kernel still holds the
	// lookup reference from the create.
	AssertEq(nil, t.unlink(fuse.RootInodeID, "foo"))
	AssertEq(before+1, countFiles())

	// Forgetting the reference does.
	t.server.ForgetInode(
		t.ctx,
		&fuse.ForgetInodeRequest{Header: header(), Inode: created.Entry.Child, N: 1})

	// Forget has no reply to wait on; Destroy-like draining isn't available
	// mid-test, so poll.
	deadline := time.Now().Add(5 * time.Second)
	for countFiles() != before {
		if time.Now().After(deadline) {
			AddFailure("Inode never deallocated after forget")
			break
		}

		time.Sleep(time.Millisecond)
	}
}

func (t *MemFSTest) ReadDirPlusPrimesAndReferences() {
	created, err := t.createFile(fuse.RootInodeID, "foo")
	AssertEq(nil, err)

	reply := fusetesting.NewDirectoryPlusReplyRecorder(0)
	t.server.ReadDirPlus(
		t.ctx,
		&fuse.ReadDirPlusRequest{Header: header(), Inode: fuse.RootInodeID},
		reply)

	entries, err := reply.Wait()
	AssertEq(nil, err)
	AssertEq(1, len(entries))
	ExpectEq("foo", entries[0].Name)
	ExpectEq(created.Entry.Child, entries[0].Entry.Child)
	ExpectEq(created.Entry.Attributes.Size, entries[0].Entry.Attributes.Size)
}
