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

	"golang.org/x/sys/unix"
)

// A 64-bit number used to uniquely identify a file or directory in the file
// system. File systems may mint inode IDs with any value except for
// RootInodeID.
//
// This corresponds to struct inode::i_no in the VFS layer.
type InodeID uint64

// A distinguished inode ID that identifies the root of the file system, e.g.
// in a request to OpenDir or LookUpInode. Unlike all other inode IDs, which
// are minted by the file system, the kernel may send a request for this ID
// without the file system ever having referenced it in a previous response.
//
// The constant is untyped so that it can be used as e.g. an array index with
// space reserved up to the root.
const RootInodeID = 1

// A generation number for an inode. Irrelevant for file systems that won't be
// exported over NFS. For those that will and that reuse inode IDs when they
// become free, the generation number must change when an ID is reused.
//
// This corresponds to struct inode::i_generation in the VFS layer.
type GenerationNumber uint64

// An opaque 64-bit number used to identify a particular open handle to a file
// or directory. Chosen by the file system when an inode is opened, echoed
// back by the kernel on every subsequent operation against that open
// instance, and invalidated by the matching release operation.
//
// This corresponds to fuse_file_info::fh.
type HandleID uint64

// An offset into an open directory handle. This is opaque to the kernel, and
// can be used for whatever purpose the file system desires. See notes on
// ReadDirRequest.Offset for details.
type DirOffset uint64

// A header that is included with every request.
type RequestHeader struct {
	// A transport-assigned token correlating this operation invocation with
	// its eventual reply. The bridge threads it through trace spans and debug
	// logging but attaches no other meaning to it.
	ID uint64

	// Credentials information for the process making the request.
	Uid uint32
	Gid uint32
	Pid uint32
}

// Attributes for a file or directory inode. Corresponds to struct inode in
// the VFS layer.
type InodeAttributes struct {
	Size uint64

	// The number of incoming hard links to this inode.
	Nlink uint64

	// The mode of the inode, as exposed to the user in e.g. the result of
	// fstat(2).
	Mode os.FileMode

	// The device number, for special file inodes created by MkNode.
	Rdev uint32

	// Time information. See `man 2 stat` for full details.
	Atime  time.Time // Time of last access
	Mtime  time.Time // Time of last modification
	Ctime  time.Time // Time of last modification to inode
	Crtime time.Time // Time of creation (OS X only)

	// Ownership information
	Uid uint32
	Gid uint32
}

// Information about a child inode within its parent directory. Shared by the
// responses for LookUpInode, MkDir, CreateFile, etc. Consumed by the kernel
// in order to set up a dcache entry.
type ChildInodeEntry struct {
	// The ID of the child inode. The file system must ensure that the returned
	// inode ID remains valid until a later call to Forget.
	Child InodeID

	// A generation number for this incarnation of the inode with the given ID.
	// See comments on type GenerationNumber for more.
	Generation GenerationNumber

	// Current attributes for the child inode.
	//
	// When creating a new inode, the file system is responsible for
	// initializing and recording (where supported) attributes like time and
	// ownership information. Ownership in particular must be set to something
	// reasonable, or by default root will own everything and unprivileged
	// users won't be able to do anything useful.
	Attributes InodeAttributes

	// The time until which the kernel may serve the attributes above from its
	// cache without re-querying the file system. Leave at the zero value to
	// disable caching.
	AttributesExpiration time.Time

	// The time until which the kernel may maintain an entry for this name to
	// inode mapping in its dentry cache. After this time it will revalidate
	// the dentry by calling LookUpInode again. Leave at the zero value to
	// disable caching.
	EntryExpiration time.Time
}

// A time value used in SetInodeAttributesRequest that may either carry an
// explicit time or request "the current time" as observed by the file
// system's clock (the utimensat UTIME_NOW case).
type TimeOrNow struct {
	// When true, the file system should use its own notion of the current
	// time and Time is meaningless.
	Now  bool
	Time time.Time
}

// Flags that a file system may set in an OpenResponse to change how the
// kernel treats the open instance.
type OpenResponseFlags uint32

const (
	// Bypass the page cache for reads and writes through this handle. Short
	// reads are then delivered to the user as-is rather than zero-padded.
	OpenDirectIO OpenResponseFlags = 1 << 0

	// Don't invalidate cached pages for this inode on open.
	OpenKeepCache OpenResponseFlags = 1 << 1

	// The file is not seekable; the kernel should not attempt to maintain a
	// meaningful offset for it.
	OpenNonSeekable OpenResponseFlags = 1 << 2

	// Allow the kernel to cache directory listings read through this handle
	// (opendir only).
	OpenCacheDir OpenResponseFlags = 1 << 3
)

// The type of a POSIX byte-range lock, in the host's fcntl(2) encoding.
type LockType int32

const (
	ReadLock  = LockType(unix.F_RDLCK)
	WriteLock = LockType(unix.F_WRLCK)
	Unlock    = LockType(unix.F_UNLCK)
)

// A POSIX byte-range lock descriptor, mirroring struct flock.
type FileLock struct {
	// The locked range, inclusive of both endpoints.
	Start uint64
	End   uint64

	Type LockType

	// The process owning the lock, used only to fill in getlk results. Lock
	// ownership checks must use the owner token on the request instead; for
	// NPTL threads there is a 1-1 relation between pid and owner, but this is
	// not the case in general.
	Pid uint32
}

// Capability bits negotiated with the kernel during Init. The transport seeds
// InitConfig.Capabilities with what the kernel offers; the file system may
// clear bits it does not want but must not set bits that were not offered.
type CapabilityFlags uint64

const (
	CapAsyncRead       CapabilityFlags = 1 << 0
	CapPosixLocks      CapabilityFlags = 1 << 1
	CapAtomicOTrunc    CapabilityFlags = 1 << 2
	CapExportSupport   CapabilityFlags = 1 << 3
	CapBigWrites       CapabilityFlags = 1 << 4
	CapDontMask        CapabilityFlags = 1 << 5
	CapFlockLocks      CapabilityFlags = 1 << 6
	CapReadDirPlus     CapabilityFlags = 1 << 7
	CapAsyncDIO        CapabilityFlags = 1 << 8
	CapWritebackCache  CapabilityFlags = 1 << 9
	CapParallelDirOps  CapabilityFlags = 1 << 10
	CapPosixACL        CapabilityFlags = 1 << 11
	CapMaxPages        CapabilityFlags = 1 << 12
	CapCopyFileRange   CapabilityFlags = 1 << 13
	CapExplicitInvalid CapabilityFlags = 1 << 14
)

// The mutable capability-negotiation structure handed to FileSystem.Init
// before any other operation is accepted. The transport fills it in with the
// kernel's offer and finalizes the mount from whatever the file system leaves
// behind.
type InitConfig struct {
	// The protocol version spoken by the kernel. Informational; the file
	// system must not modify these.
	ProtoMajor uint32
	ProtoMinor uint32

	// The maximum size of a single write the kernel will send, in bytes. The
	// file system may lower this but not raise it.
	MaxWrite uint32

	// The maximum readahead the kernel will perform, in bytes.
	MaxReadahead uint32

	// Limits on the number of backgrounded requests the kernel keeps in
	// flight, and the point at which it considers the connection congested.
	MaxBackground       uint16
	CongestionThreshold uint16

	// The granularity of the timestamps the file system records, in
	// nanoseconds. Zero means one nanosecond.
	TimeGran uint32

	// See CapabilityFlags.
	Capabilities CapabilityFlags
}
