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

package memfs

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/asyncfs/fuse"
	"github.com/jacobsa/timeutil"
)

// An in-memory inode: a file, directory, symlink, or special node. All
// fields are guarded by the file system's mutex; methods assume the caller
// holds it.
type inode struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	clock timeutil.Clock

	/////////////////////////
	// Mutable state
	/////////////////////////

	// The current attributes of this inode.
	//
	// INVARIANT: attrs.Mode &^ (os.ModePerm|os.ModeDir|os.ModeSymlink|
	//            os.ModeNamedPipe|os.ModeSocket|os.ModeDevice|
	//            os.ModeCharDevice) == 0
	// INVARIANT: !(isDir() && isSymlink())
	// INVARIANT: If isFile(), attrs.Size == len(contents)
	attrs fuse.InodeAttributes

	// The number of lookup references the kernel holds, incremented by each
	// successful lookup-like response and decremented by ForgetInode. The
	// inode's slot may be reused only once this hits zero with no remaining
	// links.
	lookupCount uint64

	// For directories, entries describing the children of the directory.
	// Unused entries are of type DT_Unknown.
	//
	// This array can never be shortened, nor can its elements be moved,
	// because we use its indices for Dirent.Offset, which is exposed to the
	// user who might be calling readdir in a loop while concurrently
	// modifying the directory. Unused entries can, however, be reused.
	//
	// INVARIANT: If !isDir(), len(entries) == 0
	// INVARIANT: For each i, entries[i].Offset == i+1
	// INVARIANT: Contains no duplicate names in used entries.
	entries []fuse.Dirent

	// For files, the current contents of the file.
	//
	// INVARIANT: If !isFile(), len(contents) == 0
	contents []byte

	// For symlinks, the target of the symlink.
	//
	// INVARIANT: If !isSymlink(), len(target) == 0
	target string

	// Extended attributes, lazily allocated.
	xattrs map[string][]byte

	// POSIX byte-range locks currently held, in no particular order.
	//
	// INVARIANT: No record has lock type fuse.Unlock.
	locks []lockRecord
}

// A byte-range lock held on an inode, tagged with the owner token that took
// it.
type lockRecord struct {
	owner uint64
	lock  fuse.FileLock
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// Create a new inode with the supplied attributes, which need not contain
// time-related information (the inode object will take care of that).
func newInode(
	clock timeutil.Clock,
	attrs fuse.InodeAttributes) (in *inode) {
	// Update time info.
	now := clock.Now()
	attrs.Atime = now
	attrs.Mtime = now
	attrs.Ctime = now
	attrs.Crtime = now

	in = &inode{
		clock: clock,
		attrs: attrs,
	}

	return
}

const legalModeBits = os.ModePerm | os.ModeDir | os.ModeSymlink |
	os.ModeNamedPipe | os.ModeSocket | os.ModeDevice | os.ModeCharDevice

func (in *inode) checkInvariants() {
	// INVARIANT: attrs.Mode contains only legal bits.
	if in.attrs.Mode&^legalModeBits != 0 {
		panic(fmt.Sprintf("Unexpected mode: %v", in.attrs.Mode))
	}

	// INVARIANT: !(isDir() && isSymlink())
	if in.isDir() && in.isSymlink() {
		panic(fmt.Sprintf("Unexpected mode: %v", in.attrs.Mode))
	}

	// INVARIANT: If isFile(), attrs.Size == len(contents)
	if in.isFile() && in.attrs.Size != uint64(len(in.contents)) {
		panic(fmt.Sprintf(
			"Size mismatch: %d vs. %d",
			in.attrs.Size,
			len(in.contents)))
	}

	// INVARIANT: If !isDir(), len(entries) == 0
	if !in.isDir() && len(in.entries) != 0 {
		panic(fmt.Sprintf("Unexpected entries length: %d", len(in.entries)))
	}

	// INVARIANT: For each i, entries[i].Offset == i+1
	for i, e := range in.entries {
		if e.Offset != fuse.DirOffset(i+1) {
			panic(fmt.Sprintf("Unexpected offset for index %d: %d", i, e.Offset))
		}
	}

	// INVARIANT: Contains no duplicate names in used entries.
	childNames := make(map[string]struct{})
	for _, e := range in.entries {
		if e.Type != fuse.DT_Unknown {
			if _, ok := childNames[e.Name]; ok {
				panic(fmt.Sprintf("Duplicate name: %s", e.Name))
			}

			childNames[e.Name] = struct{}{}
		}
	}

	// INVARIANT: If !isFile(), len(contents) == 0
	if !in.isFile() && len(in.contents) != 0 {
		panic(fmt.Sprintf("Unexpected contents length: %d", len(in.contents)))
	}

	// INVARIANT: If !isSymlink(), len(target) == 0
	if !in.isSymlink() && len(in.target) != 0 {
		panic(fmt.Sprintf("Unexpected target length: %d", len(in.target)))
	}

	// INVARIANT: No record has lock type fuse.Unlock.
	for _, r := range in.locks {
		if r.lock.Type == fuse.Unlock {
			panic("Unlock record in lock table")
		}
	}
}

func (in *inode) isDir() bool {
	return in.attrs.Mode&os.ModeDir != 0
}

func (in *inode) isSymlink() bool {
	return in.attrs.Mode&os.ModeSymlink != 0
}

// A "file" here includes special nodes; anything whose contents we store as
// bytes.
func (in *inode) isFile() bool {
	return !(in.isDir() || in.isSymlink())
}

////////////////////////////////////////////////////////////////////////
// Directory entries
////////////////////////////////////////////////////////////////////////

// Return the number of children of the directory.
//
// REQUIRES: in.isDir()
func (in *inode) Len() (n int) {
	for _, e := range in.entries {
		if e.Type != fuse.DT_Unknown {
			n++
		}
	}

	return
}

// Find an entry for the given child name and return its inode ID.
//
// REQUIRES: in.isDir()
func (in *inode) LookUpChild(name string) (id fuse.InodeID, ok bool) {
	index, ok := in.findChild(name)
	if ok {
		id = in.entries[index].Inode
	}

	return
}

// Find the index of the child with the given name, if any.
//
// REQUIRES: in.isDir()
func (in *inode) findChild(name string) (i int, ok bool) {
	if !in.isDir() {
		panic("findChild called on non-directory.")
	}

	var e fuse.Dirent
	for i, e = range in.entries {
		if e.Type != fuse.DT_Unknown && e.Name == name {
			return i, true
		}
	}

	return 0, false
}

// Add an entry for a child.
//
// REQUIRES: in.isDir()
// REQUIRES: dt != fuse.DT_Unknown
func (in *inode) AddChild(
	id fuse.InodeID,
	name string,
	dt fuse.DirentType) {
	var index int

	// Update the modification time.
	in.attrs.Mtime = in.clock.Now()

	// No matter where we place the entry, make sure it has the correct Offset
	// field.
	defer func() {
		in.entries[index].Offset = fuse.DirOffset(index + 1)
	}()

	// Set up the entry.
	e := fuse.Dirent{
		Inode: id,
		Name:  name,
		Type:  dt,
	}

	// Look for a gap in which we can insert it.
	for index = range in.entries {
		if in.entries[index].Type == fuse.DT_Unknown {
			in.entries[index] = e
			return
		}
	}

	// Append it to the end.
	index = len(in.entries)
	in.entries = append(in.entries, e)
}

// Remove an entry for a child.
//
// REQUIRES: in.isDir()
// REQUIRES: An entry for the given name exists.
func (in *inode) RemoveChild(name string) {
	// Update the modification time.
	in.attrs.Mtime = in.clock.Now()

	// Find the entry.
	i, ok := in.findChild(name)
	if !ok {
		panic(fmt.Sprintf("Unknown child: %s", name))
	}

	// Mark it as unused.
	in.entries[i] = fuse.Dirent{
		Type:   fuse.DT_Unknown,
		Offset: fuse.DirOffset(i + 1),
	}
}

////////////////////////////////////////////////////////////////////////
// File contents
////////////////////////////////////////////////////////////////////////

// Read from the file's contents. See documentation for io.ReaderAt.
//
// REQUIRES: in.isFile()
func (in *inode) ReadAt(p []byte, off int64) (n int, err error) {
	if !in.isFile() {
		panic("ReadAt called on non-file.")
	}

	// Ensure the offset is in range.
	if off > int64(len(in.contents)) {
		err = io.EOF
		return
	}

	// Read what we can.
	n = copy(p, in.contents[off:])
	if n < len(p) {
		err = io.EOF
	}

	return
}

// Write to the file's contents, extending it (zero-filling any gap) if
// necessary. See documentation for io.WriterAt.
//
// REQUIRES: in.isFile()
func (in *inode) WriteAt(p []byte, off int64) (n int, err error) {
	if !in.isFile() {
		panic("WriteAt called on non-file.")
	}

	// Update the modification time.
	in.attrs.Mtime = in.clock.Now()

	// Ensure that the contents slice is long enough.
	newLen := int(off) + len(p)
	if len(in.contents) < newLen {
		padding := make([]byte, newLen-len(in.contents))
		in.contents = append(in.contents, padding...)
		in.attrs.Size = uint64(newLen)
	}

	// Copy in the data.
	n = copy(in.contents[off:], p)

	// Sanity check.
	if n != len(p) {
		panic(fmt.Sprintf("Unexpected short copy: %v", n))
	}

	return
}

// Truncate or extend the file to the given size.
//
// REQUIRES: in.isFile()
func (in *inode) Truncate(size uint64) {
	intSize := int(size)

	// Update contents.
	if intSize <= len(in.contents) {
		in.contents = in.contents[:intSize]
	} else {
		padding := make([]byte, intSize-len(in.contents))
		in.contents = append(in.contents, padding...)
	}

	// Update attributes.
	in.attrs.Size = size
}

// Update attributes from the non-nil fields of the request.
func (in *inode) SetAttributes(req *fuse.SetInodeAttributesRequest) {
	now := in.clock.Now()

	// Change the inode change time regardless of what we touch below.
	in.attrs.Ctime = now

	// Truncate?
	if req.Size != nil {
		in.Truncate(*req.Size)
		in.attrs.Mtime = now
	}

	// Change mode? Only the permission bits may change.
	if req.Mode != nil {
		in.attrs.Mode = (in.attrs.Mode &^ os.ModePerm) | (*req.Mode & os.ModePerm)
	}

	// Change ownership?
	if req.Uid != nil {
		in.attrs.Uid = *req.Uid
	}

	if req.Gid != nil {
		in.attrs.Gid = *req.Gid
	}

	// Change times?
	if req.Atime != nil {
		in.attrs.Atime = timeOrNow(req.Atime, now)
	}

	if req.Mtime != nil {
		in.attrs.Mtime = timeOrNow(req.Mtime, now)
	}

	if req.Ctime != nil {
		in.attrs.Ctime = *req.Ctime
	}

	if req.Crtime != nil {
		in.attrs.Crtime = *req.Crtime
	}
}

func timeOrNow(t *fuse.TimeOrNow, now time.Time) time.Time {
	if t.Now {
		return now
	}

	return t.Time
}

////////////////////////////////////////////////////////////////////////
// Sparseness (or the lack of it)
////////////////////////////////////////////////////////////////////////

// Serve an LSeek request against the file. The contents are stored densely,
// so the whole file is one data extent followed by the implicit hole at EOF.
//
// REQUIRES: in.isFile()
func (in *inode) Seek(offset int64, whence uint32) (int64, error) {
	size := int64(len(in.contents))

	switch whence {
	case fuse.SeekData:
		if offset >= size {
			return 0, fuse.ENXIO
		}

		return offset, nil

	case fuse.SeekHole:
		if offset > size {
			return 0, fuse.ENXIO
		}

		return size, nil
	}

	return 0, fuse.EINVAL
}

// Allocate space for the given range, extending the file if it reaches
// beyond the current size. Only mode zero is supported; the punch/collapse
// modes don't make sense for dense contents.
//
// REQUIRES: in.isFile()
func (in *inode) Fallocate(offset int64, length int64, mode uint32) error {
	if mode != 0 {
		return fuse.EOPNOTSUPP
	}

	if newSize := uint64(offset + length); newSize > in.attrs.Size {
		in.Truncate(newSize)
	}

	return nil
}

////////////////////////////////////////////////////////////////////////
// Extended attributes
////////////////////////////////////////////////////////////////////////

func (in *inode) GetXattr(name string) (value []byte, ok bool) {
	value, ok = in.xattrs[name]
	return
}

func (in *inode) SetXattr(name string, value []byte) {
	if in.xattrs == nil {
		in.xattrs = make(map[string][]byte)
	}

	in.xattrs[name] = append([]byte(nil), value...)
	in.attrs.Ctime = in.clock.Now()
}

func (in *inode) RemoveXattr(name string) (ok bool) {
	if _, ok = in.xattrs[name]; ok {
		delete(in.xattrs, name)
		in.attrs.Ctime = in.clock.Now()
	}

	return
}

// ListXattr returns the attribute names in the listxattr(2) wire form: each
// name followed by a NUL byte.
func (in *inode) ListXattr() (data []byte) {
	for name := range in.xattrs {
		data = append(data, name...)
		data = append(data, 0)
	}

	return
}

////////////////////////////////////////////////////////////////////////
// Byte-range locks
////////////////////////////////////////////////////////////////////////

func locksOverlap(a, b fuse.FileLock) bool {
	return a.Start <= b.End && b.Start <= a.End
}

// Find a lock that would prevent the given owner from taking the given
// lock.
func (in *inode) FindConflictingLock(
	owner uint64,
	lock fuse.FileLock) (conflict fuse.FileLock, ok bool) {
	for _, r := range in.locks {
		if r.owner == owner {
			continue
		}

		if !locksOverlap(r.lock, lock) {
			continue
		}

		// Two read locks don't conflict.
		if r.lock.Type == fuse.ReadLock && lock.Type == fuse.ReadLock {
			continue
		}

		return r.lock, true
	}

	return
}

// Take or release a lock for the given owner. A request with type
// fuse.Unlock drops every lock of the owner's that overlaps the range.
// Conflicts are the caller's problem; see FindConflictingLock.
//
// This is a simplification of fcntl(2) semantics: existing locks are not
// split or merged, so an unlock drops each overlapping lock in its
// entirety.
func (in *inode) SetLock(owner uint64, lock fuse.FileLock) {
	if lock.Type == fuse.Unlock {
		locks := in.locks[:0]
		for _, r := range in.locks {
			if r.owner == owner && locksOverlap(r.lock, lock) {
				continue
			}

			locks = append(locks, r)
		}

		in.locks = locks
		return
	}

	in.locks = append(in.locks, lockRecord{owner: owner, lock: lock})
}

// Drop every lock belonging to the given owner, as a flush must.
func (in *inode) ReleaseLocks(owner uint64) {
	locks := in.locks[:0]
	for _, r := range in.locks {
		if r.owner != owner {
			locks = append(locks, r)
		}
	}

	in.locks = locks
}
