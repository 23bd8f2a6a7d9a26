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

package fuse

import (
	"os"
	"time"
)

////////////////////////////////////////////////////////////////////////
// Inodes
////////////////////////////////////////////////////////////////////////

// Look up a child by name within a parent directory. The kernel sends this
// when resolving user paths to dentry structs, which are then cached.
//
// A successful reply implicitly takes a reference on the child inode; the
// reference is dropped again by a later Forget. File systems that implement
// inode lifetimes should count one reference per successful lookup.
type LookUpInodeRequest struct {
	Header RequestHeader

	// The ID of the directory inode to which the child belongs.
	Parent InodeID

	// The name of the child of interest, relative to the parent. For example,
	// in this directory structure:
	//
	//     foo/
	//         bar/
	//             baz
	//
	// the file system may receive a request to look up the child named "bar"
	// for the parent foo/.
	Name string
}

// Refresh the attributes for an inode whose ID was previously returned by
// LookUpInode. The kernel sends this when its cache of inode attributes is
// stale, as controlled by the AttributesExpiration field of previous
// responses.
type GetInodeAttributesRequest struct {
	Header RequestHeader

	// The inode of interest.
	Inode InodeID
}

// Attributes for an inode, and the time at which they should expire from the
// kernel's cache. Returned by GetInodeAttributes and SetInodeAttributes.
type AttributesResponse struct {
	Attributes           InodeAttributes
	AttributesExpiration time.Time
}

// Change attributes for an inode.
//
// The kernel sends this for obvious cases like chmod(2) and chown(2), and
// for less obvious cases like ftruncate(2). Only the non-nil fields carry a
// requested change; everything else must be left as it is. The response
// carries the attributes as they stand after the change.
type SetInodeAttributesRequest struct {
	Header RequestHeader

	// The inode of interest.
	Inode InodeID

	// If the inode is currently open with a handle the kernel associates with
	// this change (e.g. ftruncate vs. truncate), that handle.
	Handle *HandleID

	// The attributes to modify, or nil for attributes that don't need a
	// change.
	Size  *uint64
	Mode  *os.FileMode
	Uid   *uint32
	Gid   *uint32
	Atime *TimeOrNow
	Mtime *TimeOrNow
	Ctime *time.Time

	// Creation time, OS X only.
	Crtime *time.Time
}

// Forget a number of references to an inode previously issued by LookUpInode,
// MkDir, CreateFile, etc. The kernel sends this when evicting an inode from
// its caches; once the file system's reference count for the inode drops to
// zero it will not be mentioned again (unless reissued).
//
// No reply of any kind is produced for this operation. On unmount it is not
// guaranteed that every referenced inode receives a forget message.
type ForgetInodeRequest struct {
	Header RequestHeader

	// The inode whose references are being dropped, and the number of
	// lookup references to drop.
	Inode InodeID
	N     uint64
}

// Read the target of a symlink inode created by CreateSymlink.
type ReadSymlinkRequest struct {
	Header RequestHeader

	// The symlink inode of interest.
	Inode InodeID
}

type ReadSymlinkResponse struct {
	// The target to which the symlink points.
	Target string
}

////////////////////////////////////////////////////////////////////////
// Inode creation
////////////////////////////////////////////////////////////////////////

// Create a file, character device, block device, fifo, or socket inode as a
// child of an existing directory inode, without opening it. The kernel sends
// this in response to mknod(2), and on older kernels in place of CreateFile.
type MkNodeRequest struct {
	Header RequestHeader

	// The ID of parent directory inode within which to create the child.
	Parent InodeID

	// The name of the child to create, and the mode with which to create it.
	// Rdev carries the device number when the mode calls for a device node.
	Name string
	Mode os.FileMode
	Rdev uint32

	// The umask of the requesting process, to be applied by file systems that
	// have negotiated CapDontMask.
	Umask os.FileMode
}

// Create a directory inode as a child of an existing directory inode. The
// kernel sends this in response to a mkdir(2) call.
//
// The kernel appears to verify the name doesn't already exist before sending
// the request, but volatile file systems and paranoid non-volatile file
// systems should check anyway and return EEXIST when appropriate, for the
// reasons described on CreateFileRequest.
type MkDirRequest struct {
	Header RequestHeader

	// The ID of parent directory inode within which to create the child.
	Parent InodeID

	// The name of the child to create, and the mode with which to create it.
	Name string
	Mode os.FileMode

	// See MkNodeRequest.Umask.
	Umask os.FileMode
}

// Create a symlink inode as a child of an existing directory inode. The
// kernel sends this in response to symlink(2).
type CreateSymlinkRequest struct {
	Header RequestHeader

	// The ID of parent directory inode within which to create the child.
	Parent InodeID

	// The name of the symlink to create, and the target it should point at.
	Name   string
	Target string
}

// Create a hard link to an existing inode under a new name. The kernel sends
// this in response to link(2). A successful reply must reflect the increased
// link count in the returned attributes.
type CreateLinkRequest struct {
	Header RequestHeader

	// The existing inode to link to.
	Target InodeID

	// The ID of the directory inode within which to create the new name, and
	// the name itself.
	Parent InodeID
	Name   string
}

// Create a file inode and open it in a single atomic step.
//
// The kernel sends this when the user asks to open a file with O_CREAT and
// the kernel has observed that the file doesn't exist. However it's
// impossible to tell for sure that all kernels make this check in all cases,
// so file systems should be paranoid and return EEXIST when the file already
// exists. This particularly applies to file systems that are volatile from
// the kernel's point of view.
type CreateFileRequest struct {
	Header RequestHeader

	// The ID of parent directory inode within which to create the child file.
	Parent InodeID

	// The name of the child to create, and the mode with which to create it.
	Name string
	Mode os.FileMode

	// See MkNodeRequest.Umask.
	Umask os.FileMode

	// Open flags in the host's open(2) encoding (O_NOCTTY excluded).
	Flags int32
}

type CreateFileResponse struct {
	// Information about the inode that was created.
	Entry ChildInodeEntry

	// The handle minted for the open instance, as for OpenResponse.Handle.
	// The kernel guarantees a matching ReleaseFileHandle for it.
	Handle HandleID

	// See OpenResponse.Flags.
	Flags OpenResponseFlags
}

////////////////////////////////////////////////////////////////////////
// Namespace mutation
////////////////////////////////////////////////////////////////////////

// Unlink a file, symlink, or special inode from its parent. If this brings
// the inode's link count to zero, the inode should be deleted once the
// kernel sends a forget for it. It may still be referenced before then if a
// user still has the file open.
type UnlinkRequest struct {
	Header RequestHeader

	// The ID of parent directory inode, and the name of the entry being
	// removed within it.
	Parent InodeID
	Name   string
}

// Unlink a directory from its parent. Because directories cannot have a link
// count above one, this means the directory inode should be deleted as well
// once the kernel forgets it.
//
// The file system is responsible for checking that the directory is empty
// and returning ENOTEMPTY otherwise.
type RmDirRequest struct {
	Header RequestHeader

	// The ID of parent directory inode, and the name of the directory being
	// removed within it.
	Parent InodeID
	Name   string
}

// Move an entry from one name to another, possibly across directories. The
// kernel sends this in response to rename(2).
//
// The move must be atomic as observed through this file system: no
// concurrent operation may see a state in which both names, or neither name,
// refers to the entry. If the new name already exists it must be atomically
// replaced, with the usual constraints (a directory may only replace an
// empty directory; a non-directory may not replace a directory).
type RenameRequest struct {
	Header RequestHeader

	// The entry's current parent directory and name.
	OldParent InodeID
	OldName   string

	// The entry's requested parent directory and name.
	NewParent InodeID
	NewName   string

	// Behavior flags in the host's renameat2(2) encoding (RENAME_NOREPLACE,
	// RENAME_EXCHANGE, ...). Zero for a plain rename. File systems that do
	// not support a requested flag must return EINVAL.
	Flags uint32
}

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

// Open a file inode.
//
// On Linux the kernel sends this when setting up a struct file for a
// particular inode with type file, usually in response to an open(2) call
// from a user-space process. On OS X it may not be sent for every open(2).
type OpenFileRequest struct {
	Header RequestHeader

	// The ID of the inode to be opened.
	Inode InodeID

	// Open flags in the host's open(2) encoding, with the exception of
	// O_CREAT, O_EXCL, O_NOCTTY and O_TRUNC.
	Flags int32
}

// Returned by OpenFile and OpenDir.
type OpenResponse struct {
	// An opaque ID that will be echoed back by the kernel in follow-up
	// operations against this open instance (reads, writes, flushes, the
	// release). In practice this usually means follow-up calls using the
	// file descriptor returned by open(2). The file system must ensure the
	// ID remains valid until the matching release.
	//
	// File systems implementing stateless I/O may leave this zero.
	Handle HandleID

	// Flags modifying how the kernel treats the open instance.
	Flags OpenResponseFlags
}

// Read data from a file previously opened with CreateFile or OpenFile.
//
// The file system must return exactly Size bytes, except when the range
// extends past the end of the file or an error occurs. The kernel
// substitutes zeroes for the missing tail of a short read, unless the handle
// was opened with OpenDirectIO, in which case the short count is what the
// user's read(2) call returns. A short or empty result is not an error.
//
// Note that this is not sent for every user read; some reads are served by
// the page cache.
type ReadFileRequest struct {
	Header RequestHeader

	// The file inode being read, and the handle previously minted for it.
	Inode  InodeID
	Handle HandleID

	// The range of the file to read.
	Offset int64
	Size   int

	// File flags for the open instance (e.g. O_SYNC), and the lock owner
	// token when the kernel associates one with the read.
	Flags     int32
	LockOwner *uint64
}

type ReadFileResponse struct {
	// The data read. If this is shorter than the requested size, it indicates
	// EOF. An error should not be returned in this case.
	Data []byte
}

// Write data to a file previously opened with CreateFile or OpenFile.
//
// The file system must accept exactly len(Data) bytes, except on error; a
// successful reply reporting a short count is a protocol violation, mirroring
// ReadFileRequest's contract. As with reads, when the kernel's page cache is
// in play these requests are writeback-driven and not one to one with user
// write(2) calls.
//
// Writes beyond the current end of file must extend it, filling any gap
// between the old size and the write offset with zeroes.
type WriteFileRequest struct {
	Header RequestHeader

	// The file inode being written, and the handle previously minted for it.
	Inode  InodeID
	Handle HandleID

	// The offset at which to write Data.
	Offset int64

	// The data to write.
	Data []byte

	// True when this write was issued from the page cache rather than
	// directly from a user call. In that case the request's credentials and
	// handle may not match what a direct write would have carried.
	FromPageCache bool

	// See ReadFileRequest.Flags and .LockOwner.
	Flags     int32
	LockOwner *uint64
}

type WriteFileResponse struct {
	// The number of bytes accepted. Must equal len(req.Data) on success.
	Size int
}

// Flush the current state of an open file upon closing of a file descriptor
// referring to it.
//
// Because file descriptors can be duplicated (dup2, fork), one open instance
// may receive many flushes, or none at all if the descriptors die with the
// process; flushes are therefore not suitable for reference counting, and the
// handle remains valid after each one. Despite the name, the file system is
// not obliged to write anything durable here; the common reason to do work in
// flush is to report write errors to close(2), which is the last chance to do
// so. A file system that implements byte-range locks should also drop all
// locks belonging to LockOwner here.
type FlushFileRequest struct {
	Header RequestHeader

	// The file and handle being flushed.
	Inode  InodeID
	Handle HandleID

	// The lock owner whose locks should be dropped.
	LockOwner uint64
}

// Release an open file. The kernel sends this when there are no more
// references to the open instance: all file descriptors are closed and all
// memory mappings are unmapped.
//
// For every successful OpenFile or CreateFile there is exactly one release,
// regardless of how many flushes preceded it. The handle will not be used
// again afterward (unless reissued by the file system). Errors returned here
// go nowhere: the close(2) or munmap(2) that triggered the release has
// already returned.
type ReleaseFileHandleRequest struct {
	Header RequestHeader

	// The inode and handle being released.
	Inode  InodeID
	Handle HandleID

	// The flags the instance was opened with, and the lock owner associated
	// with the final descriptor.
	Flags     int32
	LockOwner *uint64

	// Whether the kernel asks for flush semantics on release as well.
	FlushRequested bool
}

// Synchronize the current contents of an open file to storage. Sent for
// fsync(2) and fdatasync(2); when DataOnly is set only user data need be
// flushed, not metadata.
type SyncFileRequest struct {
	Header RequestHeader

	// The file and handle being sync'd.
	Inode  InodeID
	Handle HandleID

	DataOnly bool
}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

// Open a directory inode.
//
// On Linux the kernel sends this when setting up a struct file for a
// particular inode with type directory, usually in response to an open(2)
// call from a user-space process. On OS X it may not be sent for every
// open(2).
type OpenDirRequest struct {
	Header RequestHeader

	// The ID of the inode to be opened.
	Inode InodeID

	// Open flags in the host's open(2) encoding.
	Flags int32
}

// Read entries from a directory previously opened with OpenDir.
//
// This operation produces a finite, size-bounded batch of the directory's
// entries per call, and must support being resumed from the offset exposed
// by any previously returned entry. The file system streams entries directly
// into the transport-supplied DirectoryReplier rather than returning a
// value; see the notes on that interface.
//
// The Offset field is opaque to the kernel. It starts at zero for a freshly
// opened (or rewound) directory stream, and otherwise carries the Offset of
// the last entry the kernel consumed, so the file system must resume the
// listing from the entry following that one. Seeking backward to an old
// offset is legal (telldir/seekdir); since entries observed across a
// concurrent modification are only loosely specified by POSIX, a simple
// scheme such as stable array indices is sufficient.
type ReadDirRequest struct {
	Header RequestHeader

	// The directory inode being read, and the handle previously minted by
	// OpenDir for it.
	Inode  InodeID
	Handle HandleID

	// The offset within the directory at which to resume reading. See above.
	Offset DirOffset

	// The kernel's buffer budget for this call, in encoded-dirent bytes. The
	// DirectoryReplier enforces it; the field is informational.
	Size int
}

// Read entries from a directory, additionally priming the kernel's caches
// with each child's inode entry. Identical to ReadDir except that each
// record carries a ChildInodeEntry, and each returned record counts as a
// lookup reference against the child, to be dropped by a later Forget.
//
// Only sent when the file system left CapReadDirPlus set during Init.
type ReadDirPlusRequest struct {
	Header RequestHeader

	Inode  InodeID
	Handle HandleID

	// See ReadDirRequest.Offset and .Size.
	Offset DirOffset
	Size   int
}

// Release an open directory. The kernel sends this when there are no more
// references to the open instance; exactly one release is sent per
// successful OpenDir, and the handle will not be used again afterward.
type ReleaseDirHandleRequest struct {
	Header RequestHeader

	// The inode and handle being released.
	Inode  InodeID
	Handle HandleID

	// The flags the instance was opened with.
	Flags int32
}

// Synchronize an open directory's contents. When DataOnly is set only the
// directory contents need be flushed, not metadata.
type SyncDirRequest struct {
	Header RequestHeader

	// The directory and handle being sync'd.
	Inode  InodeID
	Handle HandleID

	DataOnly bool
}

////////////////////////////////////////////////////////////////////////
// File system statistics
////////////////////////////////////////////////////////////////////////

// Get file system statistics, as for statfs(2).
type StatFSRequest struct {
	Header RequestHeader

	// The inode through which the file system was reached. Most file systems
	// have a single answer regardless.
	Inode InodeID
}

type StatFSResponse struct {
	// Geometry, in units of BlockSize bytes.
	Blocks          uint64
	BlocksFree      uint64
	BlocksAvailable uint64

	// Inode counts.
	Files     uint64
	FilesFree uint64

	// The preferred I/O block size, the fundamental allocation unit, and the
	// maximum file name length.
	BlockSize    uint32
	FragmentSize uint32
	NameLength   uint32
}

////////////////////////////////////////////////////////////////////////
// Extended attributes
////////////////////////////////////////////////////////////////////////

// Set an extended attribute on an inode, as for setxattr(2).
type SetXattrRequest struct {
	Header RequestHeader

	// The inode of interest, the attribute name, and the value to store.
	Inode InodeID
	Name  string
	Value []byte

	// Creation behavior in the host's setxattr(2) encoding: XATTR_CREATE
	// fails with EEXIST if the attribute exists, XATTR_REPLACE fails with
	// ENOATTR if it does not, zero allows both.
	Flags uint32

	// Write offset within the value, OS X resource-fork extension only.
	Position uint32
}

// Get an extended attribute's value, as for getxattr(2).
//
// This operation is dual-mode on Size:
//
//  *  Size == 0: the caller is probing for the required buffer size. The
//     file system must fill in XattrResponse.Size and return no data.
//
//  *  Size > 0: the file system must return the full value in
//     XattrResponse.Data if it fits in Size bytes, and fail with ERANGE if
//     it does not.
//
// A missing attribute fails with ENOATTR (ENODATA on Linux).
type GetXattrRequest struct {
	Header RequestHeader

	// The inode of interest and the attribute name.
	Inode InodeID
	Name  string

	// The caller's buffer size. See above.
	Size uint32

	// Read offset within the value, OS X resource-fork extension only.
	Position uint32
}

// Returned by GetXattr and ListXattr. Exactly one of the two modes is in
// play per request, as documented on GetXattrRequest.
type XattrResponse struct {
	// The value (or name list) when the request carried a nonzero size.
	Data []byte

	// The required buffer size when the request carried size zero.
	Size int
}

// List the names of an inode's extended attributes, as for listxattr(2).
// The result is the names concatenated, each terminated by a NUL byte, and
// the operation is dual-mode on Size exactly as GetXattr is.
type ListXattrRequest struct {
	Header RequestHeader

	// The inode of interest.
	Inode InodeID

	// The caller's buffer size. See GetXattrRequest.Size.
	Size uint32
}

// Remove an extended attribute from an inode, as for removexattr(2). A
// missing attribute fails with ENOATTR.
type RemoveXattrRequest struct {
	Header RequestHeader

	// The inode of interest and the attribute name.
	Inode InodeID
	Name  string
}

// Check file access permissions, as for access(2). Only sent when the mount
// leaves permission checking to the file system rather than the kernel's
// generic handling.
type AccessRequest struct {
	Header RequestHeader

	// The inode of interest and the access mask being tested (R_OK, W_OK,
	// X_OK bits).
	Inode InodeID
	Mask  int32
}

////////////////////////////////////////////////////////////////////////
// Locking
////////////////////////////////////////////////////////////////////////

// Test for a POSIX byte-range lock, as for fcntl(2) F_GETLK. Non-mutating:
// the file system reports whether Lock could be acquired by Owner, without
// acquiring it.
type GetFileLockRequest struct {
	Header RequestHeader

	// The file and handle of interest.
	Inode  InodeID
	Handle HandleID

	// The lock owner token performing the test, and the lock being tested.
	Owner uint64
	Lock  FileLock
}

type GetFileLockResponse struct {
	// If the tested lock could be acquired, a lock with Type Unlock.
	// Otherwise a description of a conflicting lock.
	Lock FileLock
}

// Acquire, modify, or release a POSIX byte-range lock, as for fcntl(2)
// F_SETLK and F_SETLKW.
//
// If the locking operations are not implemented the kernel still provides
// working local locks, so these are only interesting for network file
// systems and similar.
type SetFileLockRequest struct {
	Header RequestHeader

	// The file and handle of interest.
	Inode  InodeID
	Handle HandleID

	// The lock owner token, and the requested lock. A Type of Unlock
	// releases the described range.
	Owner uint64
	Lock  FileLock

	// When true (F_SETLKW) the file system should wait for a conflicting
	// lock to be released rather than failing with EAGAIN.
	Sleep bool
}

////////////////////////////////////////////////////////////////////////
// Advanced
////////////////////////////////////////////////////////////////////////

// Map a block index within a file to a block index within its backing
// device. Only meaningful for block-device-backed file systems mounted with
// the 'blkdev' option.
type BMapRequest struct {
	Header RequestHeader

	// The file inode, the file system block size in effect, and the index of
	// the block to map.
	Inode     InodeID
	BlockSize uint32
	Index     uint64
}

type BMapResponse struct {
	// The device block index.
	Block uint64
}

// Perform a device-specific operation on an open file, as for ioctl(2).
type IoctlRequest struct {
	Header RequestHeader

	// The file and handle of interest.
	Inode  InodeID
	Handle HandleID

	// The ioctl command, its flags, the input buffer supplied by the caller,
	// and the size of the output buffer the caller expects.
	Cmd        uint32
	Flags      uint32
	Input      []byte
	OutputSize uint32
}

type IoctlResponse struct {
	// The ioctl's integer result, and the output buffer, which must not
	// exceed the requested output size.
	Result int32
	Output []byte
}

// Preallocate or deallocate space within a file, as for fallocate(2). Mode
// carries the host's fallocate mode bits; mode zero allocates the described
// range, extending the file if it reaches beyond the current end.
type FallocateRequest struct {
	Header RequestHeader

	// The file and handle of interest, and the range to operate on.
	Inode  InodeID
	Handle HandleID
	Offset int64
	Length int64

	Mode uint32
}

// Reposition a file offset with sparse-file awareness, as for lseek(2) with
// SEEK_DATA or SEEK_HOLE. Plain SEEK_SET/SEEK_CUR/SEEK_END are handled by
// the kernel and never reach the file system.
type LSeekRequest struct {
	Header RequestHeader

	// The file and handle of interest.
	Inode  InodeID
	Handle HandleID

	// The starting offset, and the whence value in the host's lseek(2)
	// encoding (SeekData or SeekHole).
	Offset int64
	Whence uint32
}

type LSeekResponse struct {
	// The resulting offset.
	Offset int64
}

// Copy a range of data from one open file to another without a round trip
// through the caller, as for copy_file_range(2). A short copy is reported
// through the response's Size and is not an error.
type CopyFileRangeRequest struct {
	Header RequestHeader

	// The source file, handle, and offset.
	SrcInode  InodeID
	SrcHandle HandleID
	SrcOffset int64

	// The destination file, handle, and offset.
	DstInode  InodeID
	DstHandle HandleID
	DstOffset int64

	// The number of bytes to copy, and behavior flags (currently always
	// zero, reserved by the host protocol).
	Length uint64
	Flags  uint32
}

type CopyFileRangeResponse struct {
	// The number of bytes actually copied.
	Size uint64
}
