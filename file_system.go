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
	"golang.org/x/net/context"
)

// An interface that a file system must implement. Each method corresponds to
// a single operation that a kernel transport may deliver, receives a typed
// request struct, and produces a typed response or an error (see errors.go
// for how errors are mapped to kernel error codes).
//
// Embed a fuseutil.NotImplementedFileSystem struct to inherit defaults for
// methods you don't care about: the defaults fail with ENOSYS, except where
// noted on the individual methods below. Then wrap the result with
// NewRawFileSystem to obtain the callback surface a transport consumes.
//
// Unless otherwise noted, methods may be called concurrently from multiple
// goroutines, and must be safe for that. The supplied context is cancelled if
// the kernel interrupts the operation; long-running methods should respect
// it, but are not obliged to.
type FileSystem interface {
	// Initialize the file system. The transport calls this exactly once,
	// before delivering any other operation, and waits for it to return: this
	// is the only method that is never called concurrently with another. The
	// file system may trim the capability bits in config (see InitConfig); a
	// returned error aborts the mount.
	Init(ctx context.Context, config *InitConfig) error

	// Clean up at unmount. Called exactly once, after every outstanding
	// operation has completed and no further operations will be delivered.
	Destroy()

	// Get file system statistics, as for statfs(2). A default implementation
	// reporting a benign fixed geometry (512-byte blocks, zero counts) is
	// provided by fuseutil.NotImplementedFileSystem, since returning an error
	// here breaks df(1) and some installers.
	StatFS(ctx context.Context, req *StatFSRequest) (*StatFSResponse, error)

	///////////////////////////////////
	// Inodes
	///////////////////////////////////

	LookUpInode(ctx context.Context, req *LookUpInodeRequest) (*ChildInodeEntry, error)
	GetInodeAttributes(ctx context.Context, req *GetInodeAttributesRequest) (*AttributesResponse, error)
	SetInodeAttributes(ctx context.Context, req *SetInodeAttributesRequest) (*AttributesResponse, error)

	// Drop lookup references to an inode. This operation produces no reply of
	// any kind, and therefore no error either; it cannot fail.
	ForgetInode(ctx context.Context, req *ForgetInodeRequest)

	ReadSymlink(ctx context.Context, req *ReadSymlinkRequest) (*ReadSymlinkResponse, error)

	///////////////////////////////////
	// Inode creation and the namespace
	///////////////////////////////////

	MkNode(ctx context.Context, req *MkNodeRequest) (*ChildInodeEntry, error)
	MkDir(ctx context.Context, req *MkDirRequest) (*ChildInodeEntry, error)
	CreateSymlink(ctx context.Context, req *CreateSymlinkRequest) (*ChildInodeEntry, error)
	CreateLink(ctx context.Context, req *CreateLinkRequest) (*ChildInodeEntry, error)
	CreateFile(ctx context.Context, req *CreateFileRequest) (*CreateFileResponse, error)
	Unlink(ctx context.Context, req *UnlinkRequest) error
	RmDir(ctx context.Context, req *RmDirRequest) error
	Rename(ctx context.Context, req *RenameRequest) error

	///////////////////////////////////
	// File handles
	///////////////////////////////////

	// Open a file inode. The default implementation succeeds with the zero
	// OpenResponse, i.e. handle zero and no flags, which suits stateless file
	// systems that don't track open instances.
	OpenFile(ctx context.Context, req *OpenFileRequest) (*OpenResponse, error)

	ReadFile(ctx context.Context, req *ReadFileRequest) (*ReadFileResponse, error)
	WriteFile(ctx context.Context, req *WriteFileRequest) (*WriteFileResponse, error)

	// Flush an open file at file descriptor close time. See FlushFileRequest:
	// an open instance may see zero or many of these, and unlike release
	// errors, a flush error is visible to the closing caller. The default
	// implementation fails with ENOSYS.
	FlushFile(ctx context.Context, req *FlushFileRequest) error

	// Release an open file. Exactly one per successful OpenFile or
	// CreateFile. The default implementation succeeds without doing anything;
	// errors are swallowed in any case, since nobody is left to see them.
	ReleaseFileHandle(ctx context.Context, req *ReleaseFileHandleRequest) error

	SyncFile(ctx context.Context, req *SyncFileRequest) error

	///////////////////////////////////
	// Directory handles
	///////////////////////////////////

	// Open a directory inode. The default succeeds with the zero
	// OpenResponse, as for OpenFile.
	OpenDir(ctx context.Context, req *OpenDirRequest) (*OpenResponse, error)

	// Read a batch of directory entries, streaming them into reply rather
	// than returning a value. The method must finish by calling exactly one
	// of reply.Respond or reply.RespondError before returning; the listing
	// must be resumable per the notes on ReadDirRequest.Offset.
	ReadDir(ctx context.Context, req *ReadDirRequest, reply DirectoryReplier)

	// Like ReadDir, but each record additionally primes the kernel's caches
	// with the child's inode entry and counts as a lookup reference. See
	// ReadDirPlusRequest.
	ReadDirPlus(ctx context.Context, req *ReadDirPlusRequest, reply DirectoryPlusReplier)

	// Release an open directory. Exactly one per successful OpenDir. The
	// default implementation succeeds without doing anything.
	ReleaseDirHandle(ctx context.Context, req *ReleaseDirHandleRequest) error

	SyncDir(ctx context.Context, req *SyncDirRequest) error

	///////////////////////////////////
	// Extended attributes
	///////////////////////////////////

	SetXattr(ctx context.Context, req *SetXattrRequest) error
	GetXattr(ctx context.Context, req *GetXattrRequest) (*XattrResponse, error)
	ListXattr(ctx context.Context, req *ListXattrRequest) (*XattrResponse, error)
	RemoveXattr(ctx context.Context, req *RemoveXattrRequest) error

	///////////////////////////////////
	// Misc
	///////////////////////////////////

	Access(ctx context.Context, req *AccessRequest) error
	GetFileLock(ctx context.Context, req *GetFileLockRequest) (*GetFileLockResponse, error)
	SetFileLock(ctx context.Context, req *SetFileLockRequest) error
	BMap(ctx context.Context, req *BMapRequest) (*BMapResponse, error)
	Ioctl(ctx context.Context, req *IoctlRequest) (*IoctlResponse, error)
	Fallocate(ctx context.Context, req *FallocateRequest) error
	LSeek(ctx context.Context, req *LSeekRequest) (*LSeekResponse, error)
	CopyFileRange(ctx context.Context, req *CopyFileRangeRequest) (*CopyFileRangeResponse, error)
}
