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

package fuseutil

import (
	"golang.org/x/net/context"

	"github.com/asyncfs/fuse"
)

// Embed this within your file system type to inherit default implementations
// for the operations you don't care about.
//
// Most defaults fail with fuse.ENOSYS, which tells the kernel the operation
// is not supported. The exceptions are the operations where failing would
// needlessly break common callers of a file system that simply has no work to
// do there:
//
//  *  Init succeeds without touching the negotiated configuration.
//
//  *  OpenFile and OpenDir succeed with the zero fuse.OpenResponse (handle
//     zero, no flags), which is exactly right for stateless file systems.
//
//  *  The two release operations succeed as no-ops; release errors are
//     invisible to users anyway.
//
//  *  StatFS reports a benign fixed geometry, since df(1) and some
//     installers misbehave when statfs fails.
type NotImplementedFileSystem struct {
}

var _ fuse.DarwinFileSystem = &NotImplementedFileSystem{}

func (fs *NotImplementedFileSystem) Init(
	ctx context.Context,
	config *fuse.InitConfig) error {
	return nil
}

func (fs *NotImplementedFileSystem) Destroy() {
}

func (fs *NotImplementedFileSystem) StatFS(
	ctx context.Context,
	req *fuse.StatFSRequest) (*fuse.StatFSResponse, error) {
	resp := &fuse.StatFSResponse{
		BlockSize:    512,
		FragmentSize: 512,
		NameLength:   255,
	}

	return resp, nil
}

func (fs *NotImplementedFileSystem) LookUpInode(
	ctx context.Context,
	req *fuse.LookUpInodeRequest) (*fuse.ChildInodeEntry, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) GetInodeAttributes(
	ctx context.Context,
	req *fuse.GetInodeAttributesRequest) (*fuse.AttributesResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) SetInodeAttributes(
	ctx context.Context,
	req *fuse.SetInodeAttributesRequest) (*fuse.AttributesResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) ForgetInode(
	ctx context.Context,
	req *fuse.ForgetInodeRequest) {
}

func (fs *NotImplementedFileSystem) ReadSymlink(
	ctx context.Context,
	req *fuse.ReadSymlinkRequest) (*fuse.ReadSymlinkResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) MkNode(
	ctx context.Context,
	req *fuse.MkNodeRequest) (*fuse.ChildInodeEntry, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) MkDir(
	ctx context.Context,
	req *fuse.MkDirRequest) (*fuse.ChildInodeEntry, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) CreateSymlink(
	ctx context.Context,
	req *fuse.CreateSymlinkRequest) (*fuse.ChildInodeEntry, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) CreateLink(
	ctx context.Context,
	req *fuse.CreateLinkRequest) (*fuse.ChildInodeEntry, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) CreateFile(
	ctx context.Context,
	req *fuse.CreateFileRequest) (*fuse.CreateFileResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) Unlink(
	ctx context.Context,
	req *fuse.UnlinkRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) RmDir(
	ctx context.Context,
	req *fuse.RmDirRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) Rename(
	ctx context.Context,
	req *fuse.RenameRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) OpenFile(
	ctx context.Context,
	req *fuse.OpenFileRequest) (*fuse.OpenResponse, error) {
	return &fuse.OpenResponse{}, nil
}

func (fs *NotImplementedFileSystem) ReadFile(
	ctx context.Context,
	req *fuse.ReadFileRequest) (*fuse.ReadFileResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) WriteFile(
	ctx context.Context,
	req *fuse.WriteFileRequest) (*fuse.WriteFileResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) FlushFile(
	ctx context.Context,
	req *fuse.FlushFileRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) ReleaseFileHandle(
	ctx context.Context,
	req *fuse.ReleaseFileHandleRequest) error {
	return nil
}

func (fs *NotImplementedFileSystem) SyncFile(
	ctx context.Context,
	req *fuse.SyncFileRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) OpenDir(
	ctx context.Context,
	req *fuse.OpenDirRequest) (*fuse.OpenResponse, error) {
	return &fuse.OpenResponse{}, nil
}

func (fs *NotImplementedFileSystem) ReadDir(
	ctx context.Context,
	req *fuse.ReadDirRequest,
	reply fuse.DirectoryReplier) {
	reply.RespondError(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) ReadDirPlus(
	ctx context.Context,
	req *fuse.ReadDirPlusRequest,
	reply fuse.DirectoryPlusReplier) {
	reply.RespondError(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) ReleaseDirHandle(
	ctx context.Context,
	req *fuse.ReleaseDirHandleRequest) error {
	return nil
}

func (fs *NotImplementedFileSystem) SyncDir(
	ctx context.Context,
	req *fuse.SyncDirRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) SetXattr(
	ctx context.Context,
	req *fuse.SetXattrRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) GetXattr(
	ctx context.Context,
	req *fuse.GetXattrRequest) (*fuse.XattrResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) ListXattr(
	ctx context.Context,
	req *fuse.ListXattrRequest) (*fuse.XattrResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) RemoveXattr(
	ctx context.Context,
	req *fuse.RemoveXattrRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) Access(
	ctx context.Context,
	req *fuse.AccessRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) GetFileLock(
	ctx context.Context,
	req *fuse.GetFileLockRequest) (*fuse.GetFileLockResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) SetFileLock(
	ctx context.Context,
	req *fuse.SetFileLockRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) BMap(
	ctx context.Context,
	req *fuse.BMapRequest) (*fuse.BMapResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) Ioctl(
	ctx context.Context,
	req *fuse.IoctlRequest) (*fuse.IoctlResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) Fallocate(
	ctx context.Context,
	req *fuse.FallocateRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) LSeek(
	ctx context.Context,
	req *fuse.LSeekRequest) (*fuse.LSeekResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) CopyFileRange(
	ctx context.Context,
	req *fuse.CopyFileRangeRequest) (*fuse.CopyFileRangeResponse, error) {
	return nil, fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) SetVolumeName(
	ctx context.Context,
	req *fuse.SetVolumeNameRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) ExchangeData(
	ctx context.Context,
	req *fuse.ExchangeDataRequest) error {
	return fuse.ENOSYS
}

func (fs *NotImplementedFileSystem) GetXTimes(
	ctx context.Context,
	req *fuse.GetXTimesRequest) (*fuse.GetXTimesResponse, error) {
	return nil, fuse.ENOSYS
}
