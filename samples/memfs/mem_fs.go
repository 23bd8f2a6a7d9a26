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

// Package memfs provides a file system that stores all data and metadata in
// memory, exercising most of the operations a kernel can send.
package memfs

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/asyncfs/fuse"
	"github.com/asyncfs/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"golang.org/x/net/context"
	"golang.org/x/sys/unix"
)

type memFS struct {
	fuseutil.NotImplementedFileSystem

	/////////////////////////
	// Dependencies
	/////////////////////////

	clock timeutil.Clock

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu syncutil.InvariantMutex

	// The collection of all inodes that have ever been created, indexed by
	// inode ID. Some slots are nil if the inode has been deallocated, and no
	// inode with ID less than fuse.RootInodeID is ever used.
	//
	// INVARIANT: len(inodes) > fuse.RootInodeID
	// INVARIANT: For all i < fuse.RootInodeID, inodes[i] == nil
	// INVARIANT: inodes[fuse.RootInodeID] is a directory
	inodes []*inode // GUARDED_BY(mu)

	// A list of inode IDs within inodes available for reuse, not including
	// the reserved IDs less than fuse.RootInodeID.
	//
	// INVARIANT: This is all and only indices i of inodes such that
	// i > fuse.RootInodeID and inodes[i] == nil
	freeInodes []fuse.InodeID // GUARDED_BY(mu)
}

// Create a file system that stores data and metadata in memory. The root
// directory is owned by the supplied UID and GID.
func NewMemFS(
	clock timeutil.Clock,
	uid uint32,
	gid uint32) fuse.FileSystem {
	// Set up the basic struct.
	fs := &memFS{
		clock:  clock,
		inodes: make([]*inode, fuse.RootInodeID+1),
	}

	// Set up the root inode.
	fs.inodes[fuse.RootInodeID] = newInode(clock, fuse.InodeAttributes{
		Mode:  0700 | os.ModeDir,
		Nlink: 1,
		Uid:   uid,
		Gid:   gid,
	})

	// The root is referenced implicitly, without a lookup, and must never be
	// deallocated.
	fs.inodes[fuse.RootInodeID].lookupCount = 1

	// Set up invariant checking.
	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	return fs
}

func (fs *memFS) checkInvariants() {
	// INVARIANT: For all i < fuse.RootInodeID, inodes[i] == nil
	for i := 0; i < fuse.RootInodeID; i++ {
		if fs.inodes[i] != nil {
			panic(fmt.Sprintf("Non-nil inode for ID: %v", i))
		}
	}

	// INVARIANT: inodes[fuse.RootInodeID] is a directory
	if !fs.inodes[fuse.RootInodeID].isDir() {
		panic("Expected root to be a directory.")
	}

	// Check inodes, building our own set of free IDs.
	freeIDsEncountered := make(map[fuse.InodeID]struct{})
	for i := fuse.RootInodeID + 1; i < len(fs.inodes); i++ {
		in := fs.inodes[i]
		if in == nil {
			freeIDsEncountered[fuse.InodeID(i)] = struct{}{}
			continue
		}

		in.checkInvariants()
	}

	// INVARIANT: freeInodes matches the nil slots exactly.
	if len(fs.freeInodes) != len(freeIDsEncountered) {
		panic(fmt.Sprintf(
			"Length mismatch: %v vs. %v",
			len(fs.freeInodes),
			len(freeIDsEncountered)))
	}

	for _, id := range fs.freeInodes {
		if _, ok := freeIDsEncountered[id]; !ok {
			panic(fmt.Sprintf("Unexpected free inode ID: %v", id))
		}
	}
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// Allocate a slot for a new inode with the supplied attributes.
//
// EXCLUSIVE_LOCKS_REQUIRED(fs.mu)
func (fs *memFS) allocateInode(
	attrs fuse.InodeAttributes) (id fuse.InodeID, in *inode) {
	in = newInode(fs.clock, attrs)

	// Re-use a free slot if possible, otherwise grow.
	numFree := len(fs.freeInodes)
	if numFree != 0 {
		id = fs.freeInodes[numFree-1]
		fs.freeInodes = fs.freeInodes[:numFree-1]
		fs.inodes[id] = in
	} else {
		id = fuse.InodeID(len(fs.inodes))
		fs.inodes = append(fs.inodes, in)
	}

	return
}

// EXCLUSIVE_LOCKS_REQUIRED(fs.mu)
func (fs *memFS) deallocateInode(id fuse.InodeID) {
	fs.freeInodes = append(fs.freeInodes, id)
	fs.inodes[id] = nil
}

// Drop the slot for an inode that has no remaining links, once the kernel
// holds no more references to it.
//
// EXCLUSIVE_LOCKS_REQUIRED(fs.mu)
func (fs *memFS) maybeDeallocateInode(id fuse.InodeID) {
	in := fs.inodes[id]
	if in.lookupCount == 0 && in.attrs.Nlink == 0 {
		fs.deallocateInode(id)
	}
}

// Panic if out of range or deallocated.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *memFS) getInodeOrDie(id fuse.InodeID) (in *inode) {
	if id >= fuse.InodeID(len(fs.inodes)) {
		panic(fmt.Sprintf("Inode out of range: %v vs. %v", id, len(fs.inodes)))
	}

	in = fs.inodes[id]
	if in == nil {
		panic(fmt.Sprintf("Unknown inode: %v", id))
	}

	return
}

// Panic if not a live directory.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *memFS) getDirOrDie(id fuse.InodeID) (in *inode) {
	in = fs.getInodeOrDie(id)
	if !in.isDir() {
		panic(fmt.Sprintf("Not a directory: %v", id))
	}

	return
}

// Build a ChildInodeEntry for the given inode without issuing a lookup
// reference.
//
// We don't spontaneously mutate, so the kernel can cache attributes and
// entries as long as it wants (it also handles invalidation for local
// changes).
//
// LOCKS_REQUIRED(fs.mu)
func (fs *memFS) entryForInode(id fuse.InodeID) fuse.ChildInodeEntry {
	in := fs.getInodeOrDie(id)
	expiration := fs.clock.Now().Add(365 * 24 * time.Hour)

	return fuse.ChildInodeEntry{
		Child:                id,
		Attributes:           in.attrs,
		AttributesExpiration: expiration,
		EntryExpiration:      expiration,
	}
}

// Like entryForInode, but also issue the lookup reference a lookup-style
// response implies. Forget undoes this.
//
// EXCLUSIVE_LOCKS_REQUIRED(fs.mu)
func (fs *memFS) lookUpEntry(id fuse.InodeID) *fuse.ChildInodeEntry {
	fs.getInodeOrDie(id).lookupCount++
	e := fs.entryForInode(id)
	return &e
}

func direntTypeFor(mode os.FileMode) fuse.DirentType {
	switch {
	case mode&os.ModeDir != 0:
		return fuse.DT_Directory
	case mode&os.ModeSymlink != 0:
		return fuse.DT_Link
	case mode&os.ModeCharDevice != 0:
		return fuse.DT_Char
	case mode&os.ModeDevice != 0:
		return fuse.DT_Block
	case mode&os.ModeNamedPipe != 0:
		return fuse.DT_FIFO
	case mode&os.ModeSocket != 0:
		return fuse.DT_Socket
	}

	return fuse.DT_File
}

// Create a new child of the given parent, failing with EEXIST if the name is
// already taken.
//
// EXCLUSIVE_LOCKS_REQUIRED(fs.mu)
func (fs *memFS) createChild(
	parentID fuse.InodeID,
	name string,
	attrs fuse.InodeAttributes) (*fuse.ChildInodeEntry, error) {
	parent := fs.getDirOrDie(parentID)

	// Make sure the name doesn't already exist; the kernel appears to check
	// this for us, but we are a volatile file system from its point of view.
	if _, ok := parent.LookUpChild(name); ok {
		return nil, fuse.EEXIST
	}

	// Set up the child.
	attrs.Nlink = 1
	childID, _ := fs.allocateInode(attrs)

	// Add an entry in the parent.
	parent.AddChild(childID, name, direntTypeFor(attrs.Mode))

	return fs.lookUpEntry(childID), nil
}

////////////////////////////////////////////////////////////////////////
// Lifecycle
////////////////////////////////////////////////////////////////////////

func (fs *memFS) Init(
	ctx context.Context,
	config *fuse.InitConfig) error {
	// Keep only the offered capabilities we actually do something with.
	config.Capabilities &= fuse.CapAsyncRead |
		fuse.CapAtomicOTrunc |
		fuse.CapBigWrites |
		fuse.CapParallelDirOps |
		fuse.CapPosixLocks |
		fuse.CapReadDirPlus |
		fuse.CapCopyFileRange

	return nil
}

////////////////////////////////////////////////////////////////////////
// Inodes
////////////////////////////////////////////////////////////////////////

func (fs *memFS) LookUpInode(
	ctx context.Context,
	req *fuse.LookUpInodeRequest) (*fuse.ChildInodeEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Grab the parent directory.
	parent := fs.getDirOrDie(req.Parent)

	// Does the directory have an entry with the given name?
	childID, ok := parent.LookUpChild(req.Name)
	if !ok {
		return nil, fuse.ENOENT
	}

	return fs.lookUpEntry(childID), nil
}

func (fs *memFS) GetInodeAttributes(
	ctx context.Context,
	req *fuse.GetInodeAttributesRequest) (*fuse.AttributesResponse, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	in := fs.getInodeOrDie(req.Inode)

	return &fuse.AttributesResponse{
		Attributes:           in.attrs,
		AttributesExpiration: fs.clock.Now().Add(365 * 24 * time.Hour),
	}, nil
}

func (fs *memFS) SetInodeAttributes(
	ctx context.Context,
	req *fuse.SetInodeAttributesRequest) (*fuse.AttributesResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in := fs.getInodeOrDie(req.Inode)
	in.SetAttributes(req)

	return &fuse.AttributesResponse{
		Attributes:           in.attrs,
		AttributesExpiration: fs.clock.Now().Add(365 * 24 * time.Hour),
	}, nil
}

func (fs *memFS) ForgetInode(
	ctx context.Context,
	req *fuse.ForgetInodeRequest) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in := fs.getInodeOrDie(req.Inode)

	if req.N > in.lookupCount {
		panic(fmt.Sprintf(
			"Forgetting too much: %v vs. %v",
			req.N,
			in.lookupCount))
	}

	in.lookupCount -= req.N
	fs.maybeDeallocateInode(req.Inode)
}

func (fs *memFS) ReadSymlink(
	ctx context.Context,
	req *fuse.ReadSymlinkRequest) (*fuse.ReadSymlinkResponse, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	in := fs.getInodeOrDie(req.Inode)
	if !in.isSymlink() {
		return nil, fuse.EINVAL
	}

	return &fuse.ReadSymlinkResponse{Target: in.target}, nil
}

////////////////////////////////////////////////////////////////////////
// Inode creation
////////////////////////////////////////////////////////////////////////

func (fs *memFS) MkNode(
	ctx context.Context,
	req *fuse.MkNodeRequest) (*fuse.ChildInodeEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.createChild(req.Parent, req.Name, fuse.InodeAttributes{
		Mode: req.Mode,
		Rdev: req.Rdev,
		Uid:  req.Header.Uid,
		Gid:  req.Header.Gid,
	})
}

func (fs *memFS) MkDir(
	ctx context.Context,
	req *fuse.MkDirRequest) (*fuse.ChildInodeEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.createChild(req.Parent, req.Name, fuse.InodeAttributes{
		Mode: req.Mode,
		Uid:  req.Header.Uid,
		Gid:  req.Header.Gid,
	})
}

func (fs *memFS) CreateSymlink(
	ctx context.Context,
	req *fuse.CreateSymlinkRequest) (*fuse.ChildInodeEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entry, err := fs.createChild(req.Parent, req.Name, fuse.InodeAttributes{
		Mode: 0444 | os.ModeSymlink,
		Uid:  req.Header.Uid,
		Gid:  req.Header.Gid,
	})
	if err != nil {
		return nil, err
	}

	fs.getInodeOrDie(entry.Child).target = req.Target
	return entry, nil
}

func (fs *memFS) CreateLink(
	ctx context.Context,
	req *fuse.CreateLinkRequest) (*fuse.ChildInodeEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent := fs.getDirOrDie(req.Parent)

	// Directories can't be hard-linked.
	target := fs.getInodeOrDie(req.Target)
	if target.isDir() {
		return nil, fuse.EPERM
	}

	if _, ok := parent.LookUpChild(req.Name); ok {
		return nil, fuse.EEXIST
	}

	// Bump the link count and expose the new name.
	target.attrs.Nlink++
	target.attrs.Ctime = fs.clock.Now()
	parent.AddChild(req.Target, req.Name, direntTypeFor(target.attrs.Mode))

	return fs.lookUpEntry(req.Target), nil
}

func (fs *memFS) CreateFile(
	ctx context.Context,
	req *fuse.CreateFileRequest) (*fuse.CreateFileResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entry, err := fs.createChild(req.Parent, req.Name, fuse.InodeAttributes{
		Mode: req.Mode,
		Uid:  req.Header.Uid,
		Gid:  req.Header.Gid,
	})
	if err != nil {
		return nil, err
	}

	// We implement stateless I/O, so the handle is meaningless.
	return &fuse.CreateFileResponse{Entry: *entry}, nil
}

////////////////////////////////////////////////////////////////////////
// Namespace mutation
////////////////////////////////////////////////////////////////////////

func (fs *memFS) Unlink(
	ctx context.Context,
	req *fuse.UnlinkRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent := fs.getDirOrDie(req.Parent)

	childID, ok := parent.LookUpChild(req.Name)
	if !ok {
		return fuse.ENOENT
	}

	child := fs.getInodeOrDie(childID)
	if child.isDir() {
		return fuse.EISDIR
	}

	// Drop the name. The inode itself lives on until the kernel forgets it,
	// since the user may still have it open.
	child.attrs.Nlink--
	child.attrs.Ctime = fs.clock.Now()
	parent.RemoveChild(req.Name)

	fs.maybeDeallocateInode(childID)
	return nil
}

func (fs *memFS) RmDir(
	ctx context.Context,
	req *fuse.RmDirRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent := fs.getDirOrDie(req.Parent)

	childID, ok := parent.LookUpChild(req.Name)
	if !ok {
		return fuse.ENOENT
	}

	child := fs.getInodeOrDie(childID)
	if !child.isDir() {
		return fuse.ENOTDIR
	}

	if child.Len() != 0 {
		return fuse.ENOTEMPTY
	}

	child.attrs.Nlink = 0
	parent.RemoveChild(req.Name)

	fs.maybeDeallocateInode(childID)
	return nil
}

// Rename behavior flags, in the renameat2(2) encoding. Defined here rather
// than taken from the unix package because Darwin doesn't have them.
const (
	renameNoReplace = 0x1
	renameExchange  = 0x2
)

func (fs *memFS) Rename(
	ctx context.Context,
	req *fuse.RenameRequest) error {
	if req.Flags&^uint32(renameNoReplace|renameExchange) != 0 {
		return fuse.EINVAL
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	oldParent := fs.getDirOrDie(req.OldParent)
	newParent := fs.getDirOrDie(req.NewParent)

	oldID, ok := oldParent.LookUpChild(req.OldName)
	if !ok {
		return fuse.ENOENT
	}

	old := fs.getInodeOrDie(oldID)
	existingID, exists := newParent.LookUpChild(req.NewName)

	// Exchange never deletes anything; the two entries just trade places.
	if req.Flags&renameExchange != 0 {
		if !exists {
			return fuse.ENOENT
		}

		existing := fs.getInodeOrDie(existingID)
		oldParent.RemoveChild(req.OldName)
		newParent.RemoveChild(req.NewName)
		oldParent.AddChild(existingID, req.OldName, direntTypeFor(existing.attrs.Mode))
		newParent.AddChild(oldID, req.NewName, direntTypeFor(old.attrs.Mode))

		return nil
	}

	if exists {
		if req.Flags&renameNoReplace != 0 {
			return fuse.EEXIST
		}

		// The names may be two links to one inode, or the very same entry;
		// rename(2) then succeeds without doing anything, leaving both names
		// in place.
		if existingID == oldID {
			return nil
		}

		// The usual constraints on what may replace what.
		existing := fs.getInodeOrDie(existingID)
		switch {
		case existing.isDir() && !old.isDir():
			return fuse.EISDIR

		case !existing.isDir() && old.isDir():
			return fuse.ENOTDIR

		case existing.isDir() && existing.Len() != 0:
			return fuse.ENOTEMPTY
		}

		// Atomically replace it, as an unlink/rmdir would.
		if existing.isDir() {
			existing.attrs.Nlink = 0
		} else {
			existing.attrs.Nlink--
		}
		existing.attrs.Ctime = fs.clock.Now()

		newParent.RemoveChild(req.NewName)
		fs.maybeDeallocateInode(existingID)
	}

	oldParent.RemoveChild(req.OldName)
	newParent.AddChild(oldID, req.NewName, direntTypeFor(old.attrs.Mode))

	return nil
}

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

func (fs *memFS) OpenFile(
	ctx context.Context,
	req *fuse.OpenFileRequest) (*fuse.OpenResponse, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// We don't mutate spontaneously, so if the VFS layer has asked for an
	// inode that doesn't exist, something screwed up earlier (a lookup, a
	// cache invalidation, etc.).
	in := fs.getInodeOrDie(req.Inode)
	if !in.isFile() {
		panic("Found non-file.")
	}

	// We implement stateless I/O, so the handle is meaningless.
	return &fuse.OpenResponse{}, nil
}

func (fs *memFS) ReadFile(
	ctx context.Context,
	req *fuse.ReadFileRequest) (*fuse.ReadFileResponse, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	in := fs.getInodeOrDie(req.Inode)

	// Serve the read, clipping at EOF; a short read is how EOF is signalled.
	buf := make([]byte, req.Size)
	n, err := in.ReadAt(buf, req.Offset)
	if err == io.EOF {
		err = nil
	}

	return &fuse.ReadFileResponse{Data: buf[:n]}, err
}

func (fs *memFS) WriteFile(
	ctx context.Context,
	req *fuse.WriteFileRequest) (*fuse.WriteFileResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in := fs.getInodeOrDie(req.Inode)

	n, err := in.WriteAt(req.Data, req.Offset)
	if err != nil {
		return nil, err
	}

	return &fuse.WriteFileResponse{Size: n}, nil
}

func (fs *memFS) FlushFile(
	ctx context.Context,
	req *fuse.FlushFileRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Nothing to write anywhere, but the flusher's locks die with it.
	fs.getInodeOrDie(req.Inode).ReleaseLocks(req.LockOwner)
	return nil
}

func (fs *memFS) SyncFile(
	ctx context.Context,
	req *fuse.SyncFileRequest) error {
	// Everything is durable as long as we are.
	return nil
}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

func (fs *memFS) OpenDir(
	ctx context.Context,
	req *fuse.OpenDirRequest) (*fuse.OpenResponse, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// See the note in OpenFile.
	_ = fs.getDirOrDie(req.Inode)

	return &fuse.OpenResponse{}, nil
}

func (fs *memFS) ReadDir(
	ctx context.Context,
	req *fuse.ReadDirRequest,
	reply fuse.DirectoryReplier) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	d := fs.getDirOrDie(req.Inode)

	// Offsets are indices into the entries array (plus one), so resuming at
	// an old offset is just starting the scan there. Entries are never moved,
	// only tombstoned, which we skip over.
	for i := int(req.Offset); i < len(d.entries); i++ {
		e := d.entries[i]
		if e.Type == fuse.DT_Unknown {
			continue
		}

		if !reply.AddEntry(e) {
			break
		}
	}

	reply.Respond()
}

func (fs *memFS) ReadDirPlus(
	ctx context.Context,
	req *fuse.ReadDirPlusRequest,
	reply fuse.DirectoryPlusReplier) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d := fs.getDirOrDie(req.Inode)

	for i := int(req.Offset); i < len(d.entries); i++ {
		e := d.entries[i]
		if e.Type == fuse.DT_Unknown {
			continue
		}

		ok := reply.AddEntry(fuse.DirentPlus{
			Dirent: e,
			Entry:  fs.entryForInode(e.Inode),
		})
		if !ok {
			break
		}

		// Each delivered record is a lookup the kernel will forget later.
		fs.getInodeOrDie(e.Inode).lookupCount++
	}

	reply.Respond()
}

func (fs *memFS) SyncDir(
	ctx context.Context,
	req *fuse.SyncDirRequest) error {
	return nil
}

////////////////////////////////////////////////////////////////////////
// Statistics
////////////////////////////////////////////////////////////////////////

const blockSize = 4096

func (fs *memFS) StatFS(
	ctx context.Context,
	req *fuse.StatFSRequest) (*fuse.StatFSResponse, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// Pretend to be a fixed-size volume, with usage reflecting the bytes we
	// actually hold.
	var usedBlocks uint64
	var files uint64
	for _, in := range fs.inodes {
		if in == nil {
			continue
		}

		files++
		usedBlocks += (uint64(len(in.contents)) + blockSize - 1) / blockSize
	}

	const totalBlocks = 1 << 21
	return &fuse.StatFSResponse{
		Blocks:          totalBlocks,
		BlocksFree:      totalBlocks - usedBlocks,
		BlocksAvailable: totalBlocks - usedBlocks,
		Files:           files,
		FilesFree:       1<<32 - files,
		BlockSize:       blockSize,
		FragmentSize:    blockSize,
		NameLength:      255,
	}, nil
}

////////////////////////////////////////////////////////////////////////
// Extended attributes
////////////////////////////////////////////////////////////////////////

func (fs *memFS) SetXattr(
	ctx context.Context,
	req *fuse.SetXattrRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in := fs.getInodeOrDie(req.Inode)

	_, exists := in.GetXattr(req.Name)
	switch {
	case req.Flags&unix.XATTR_CREATE != 0 && exists:
		return fuse.EEXIST

	case req.Flags&unix.XATTR_REPLACE != 0 && !exists:
		return fuse.ENOATTR
	}

	in.SetXattr(req.Name, req.Value)
	return nil
}

// Serve the dual-mode size/data protocol shared by GetXattr and ListXattr.
func xattrResponse(value []byte, size uint32) (*fuse.XattrResponse, error) {
	// A zero size is a probe for how big a buffer is needed.
	if size == 0 {
		return &fuse.XattrResponse{Size: len(value)}, nil
	}

	if len(value) > int(size) {
		return nil, fuse.ERANGE
	}

	return &fuse.XattrResponse{Data: value, Size: len(value)}, nil
}

func (fs *memFS) GetXattr(
	ctx context.Context,
	req *fuse.GetXattrRequest) (*fuse.XattrResponse, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	in := fs.getInodeOrDie(req.Inode)

	value, ok := in.GetXattr(req.Name)
	if !ok {
		return nil, fuse.ENOATTR
	}

	return xattrResponse(value, req.Size)
}

func (fs *memFS) ListXattr(
	ctx context.Context,
	req *fuse.ListXattrRequest) (*fuse.XattrResponse, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	in := fs.getInodeOrDie(req.Inode)
	return xattrResponse(in.ListXattr(), req.Size)
}

func (fs *memFS) RemoveXattr(
	ctx context.Context,
	req *fuse.RemoveXattrRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in := fs.getInodeOrDie(req.Inode)
	if !in.RemoveXattr(req.Name) {
		return fuse.ENOATTR
	}

	return nil
}

////////////////////////////////////////////////////////////////////////
// Misc
////////////////////////////////////////////////////////////////////////

func (fs *memFS) Access(
	ctx context.Context,
	req *fuse.AccessRequest) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	in := fs.getInodeOrDie(req.Inode)

	// Select the permission bits that apply to the caller.
	perms := uint32(in.attrs.Mode & os.ModePerm)
	switch {
	case req.Header.Uid == in.attrs.Uid:
		perms >>= 6
	case req.Header.Gid == in.attrs.Gid:
		perms >>= 3
	}

	if uint32(req.Mask)&^perms&0x7 != 0 {
		return fuse.EACCES
	}

	return nil
}

func (fs *memFS) GetFileLock(
	ctx context.Context,
	req *fuse.GetFileLockRequest) (*fuse.GetFileLockResponse, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	in := fs.getInodeOrDie(req.Inode)

	conflict, ok := in.FindConflictingLock(req.Owner, req.Lock)
	if !ok {
		// The lock could be taken. Report that by echoing the request's lock
		// with type Unlock, per the F_GETLK convention.
		conflict = req.Lock
		conflict.Type = fuse.Unlock
	}

	return &fuse.GetFileLockResponse{Lock: conflict}, nil
}

func (fs *memFS) SetFileLock(
	ctx context.Context,
	req *fuse.SetFileLockRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in := fs.getInodeOrDie(req.Inode)

	if req.Lock.Type != fuse.Unlock {
		// We never block waiting for a lock, even for F_SETLKW: that would
		// hold the file system lock. A conflicting request fails with EAGAIN
		// as if it were non-blocking.
		if _, ok := in.FindConflictingLock(req.Owner, req.Lock); ok {
			return fuse.EAGAIN
		}
	}

	in.SetLock(req.Owner, req.Lock)
	return nil
}

func (fs *memFS) Fallocate(
	ctx context.Context,
	req *fuse.FallocateRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.getInodeOrDie(req.Inode).Fallocate(req.Offset, req.Length, req.Mode)
}

func (fs *memFS) LSeek(
	ctx context.Context,
	req *fuse.LSeekRequest) (*fuse.LSeekResponse, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	offset, err := fs.getInodeOrDie(req.Inode).Seek(req.Offset, req.Whence)
	if err != nil {
		return nil, err
	}

	return &fuse.LSeekResponse{Offset: offset}, nil
}

func (fs *memFS) CopyFileRange(
	ctx context.Context,
	req *fuse.CopyFileRangeRequest) (*fuse.CopyFileRangeResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	src := fs.getInodeOrDie(req.SrcInode)
	dst := fs.getInodeOrDie(req.DstInode)

	// Clip the copy at the source's EOF; a short copy is not an error.
	buf := make([]byte, req.Length)
	n, err := src.ReadAt(buf, req.SrcOffset)
	if err != nil && err != io.EOF {
		return nil, err
	}

	// Stage through buf, so that overlapping ranges within one file work.
	if _, err := dst.WriteAt(buf[:n], req.DstOffset); err != nil {
		return nil, err
	}

	return &fuse.CopyFileRangeResponse{Size: uint64(n)}, nil
}
