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

// A one-shot sink for the reply to a single operation whose successful
// response has type R. A kernel transport supplies one per request; whoever
// holds it must eventually call exactly one of Respond or RespondError,
// exactly once. The transport owns what happens next (encoding the reply and
// writing it back to the kernel).
//
// NewRawFileSystem discharges this obligation on behalf of the wrapped
// FileSystem for every operation except the streaming directory reads, whose
// sinks are handed to the file system itself.
//
// Implementations must be safe to call from any goroutine, but need not
// tolerate a second call: the caller is responsible for the exactly-once
// discipline.
type Replier[R any] interface {
	// Deliver a successful response. resp must be non-nil.
	Respond(resp *R)

	// Deliver a failure. See errors.go for how err is turned into a kernel
	// error code.
	RespondError(err error)
}

// A one-shot reply sink for operations that carry no response payload,
// only success or an error. Same cardinality contract as Replier.
type EmptyReplier interface {
	Respond()
	RespondError(err error)
}

// The reply sink for ReadDir. In addition to being a one-shot success/error
// sink, it accumulates the batch of directory entries before finalization.
//
// A transport implementation encodes each entry into the kernel's dirent
// format against the request's byte budget; see fuseutil.AppendDirent.
type DirectoryReplier interface {
	// Append an entry to the batch. Returns false, without appending, when
	// the entry does not fit in the remaining space for the request, in which
	// case the file system should stop and finalize: the kernel will come
	// back for the rest with an updated offset.
	//
	// Must not be called after Respond or RespondError.
	AddEntry(d Dirent) bool

	// Finalize with the entries appended so far. An empty batch signals end
	// of directory.
	Respond()

	RespondError(err error)
}

// The reply sink for ReadDirPlus. Identical to DirectoryReplier but for the
// entry type.
type DirectoryPlusReplier interface {
	AddEntry(d DirentPlus) bool
	Respond()
	RespondError(err error)
}

// The surface a kernel transport drives. One method per operation; the
// transport calls the method matching each request it decodes, passing a
// context (cancelled if the kernel interrupts the request) and a one-shot
// reply sink.
//
// Calls must return quickly without waiting for the operation's result: the
// transport's read loop is typically the caller, and anything slow here
// stalls every other request on the connection. The obvious implementation is
// NewRawFileSystem, which schedules each operation on its own goroutine and
// replies when it completes.
//
// Init and Destroy are the exceptions: they bracket the lifetime of the
// connection and are called synchronously, Init before any operation is
// delivered and Destroy after the last reply sink has been resolved.
type RawFileSystem interface {
	Init(ctx context.Context, config *InitConfig) error
	Destroy()

	LookUpInode(ctx context.Context, req *LookUpInodeRequest, reply Replier[ChildInodeEntry])
	GetInodeAttributes(ctx context.Context, req *GetInodeAttributesRequest, reply Replier[AttributesResponse])
	SetInodeAttributes(ctx context.Context, req *SetInodeAttributesRequest, reply Replier[AttributesResponse])

	// No reply sink: the kernel expects nothing back, not even an error.
	ForgetInode(ctx context.Context, req *ForgetInodeRequest)

	ReadSymlink(ctx context.Context, req *ReadSymlinkRequest, reply Replier[ReadSymlinkResponse])

	MkNode(ctx context.Context, req *MkNodeRequest, reply Replier[ChildInodeEntry])
	MkDir(ctx context.Context, req *MkDirRequest, reply Replier[ChildInodeEntry])
	CreateSymlink(ctx context.Context, req *CreateSymlinkRequest, reply Replier[ChildInodeEntry])
	CreateLink(ctx context.Context, req *CreateLinkRequest, reply Replier[ChildInodeEntry])
	CreateFile(ctx context.Context, req *CreateFileRequest, reply Replier[CreateFileResponse])
	Unlink(ctx context.Context, req *UnlinkRequest, reply EmptyReplier)
	RmDir(ctx context.Context, req *RmDirRequest, reply EmptyReplier)
	Rename(ctx context.Context, req *RenameRequest, reply EmptyReplier)

	OpenFile(ctx context.Context, req *OpenFileRequest, reply Replier[OpenResponse])
	ReadFile(ctx context.Context, req *ReadFileRequest, reply Replier[ReadFileResponse])
	WriteFile(ctx context.Context, req *WriteFileRequest, reply Replier[WriteFileResponse])
	FlushFile(ctx context.Context, req *FlushFileRequest, reply EmptyReplier)
	ReleaseFileHandle(ctx context.Context, req *ReleaseFileHandleRequest, reply EmptyReplier)
	SyncFile(ctx context.Context, req *SyncFileRequest, reply EmptyReplier)

	OpenDir(ctx context.Context, req *OpenDirRequest, reply Replier[OpenResponse])
	ReadDir(ctx context.Context, req *ReadDirRequest, reply DirectoryReplier)
	ReadDirPlus(ctx context.Context, req *ReadDirPlusRequest, reply DirectoryPlusReplier)
	ReleaseDirHandle(ctx context.Context, req *ReleaseDirHandleRequest, reply EmptyReplier)
	SyncDir(ctx context.Context, req *SyncDirRequest, reply EmptyReplier)

	StatFS(ctx context.Context, req *StatFSRequest, reply Replier[StatFSResponse])

	SetXattr(ctx context.Context, req *SetXattrRequest, reply EmptyReplier)
	GetXattr(ctx context.Context, req *GetXattrRequest, reply Replier[XattrResponse])
	ListXattr(ctx context.Context, req *ListXattrRequest, reply Replier[XattrResponse])
	RemoveXattr(ctx context.Context, req *RemoveXattrRequest, reply EmptyReplier)

	Access(ctx context.Context, req *AccessRequest, reply EmptyReplier)
	GetFileLock(ctx context.Context, req *GetFileLockRequest, reply Replier[GetFileLockResponse])
	SetFileLock(ctx context.Context, req *SetFileLockRequest, reply EmptyReplier)
	BMap(ctx context.Context, req *BMapRequest, reply Replier[BMapResponse])
	Ioctl(ctx context.Context, req *IoctlRequest, reply Replier[IoctlResponse])
	Fallocate(ctx context.Context, req *FallocateRequest, reply EmptyReplier)
	LSeek(ctx context.Context, req *LSeekRequest, reply Replier[LSeekResponse])
	CopyFileRange(ctx context.Context, req *CopyFileRangeRequest, reply Replier[CopyFileRangeResponse])

	// OS X only. A Linux transport never calls these.
	SetVolumeName(ctx context.Context, req *SetVolumeNameRequest, reply EmptyReplier)
	ExchangeData(ctx context.Context, req *ExchangeDataRequest, reply EmptyReplier)
	GetXTimes(ctx context.Context, req *GetXTimesRequest, reply Replier[GetXTimesResponse])
}
