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
	"fmt"
	"sync"

	"github.com/jacobsa/reqtrace"
	"golang.org/x/net/context"
)

// NewRawFileSystem wraps a FileSystem in the callback surface a kernel
// transport drives.
//
// Every operation callback schedules the corresponding FileSystem method on
// a goroutine of its own and returns immediately, so a slow operation never
// holds up the transport's read loop or any other operation. When the method
// completes, its result is delivered to the transport's reply sink; each
// sink is used exactly once, including when the method panics (the panic is
// reported as EIO) and, for the streaming directory reads, when the file
// system neglects its sink.
//
// Destroy blocks until every previously scheduled operation has completed
// and replied, then calls through to the file system's own Destroy.
func NewRawFileSystem(fs FileSystem) RawFileSystem {
	s := &fileSystemServer{fs: fs}
	s.darwin, _ = fs.(DarwinFileSystem)
	return s
}

type fileSystemServer struct {
	fs FileSystem

	// Non-nil iff fs also implements the OS X-only operations.
	darwin DarwinFileSystem

	opsInFlight sync.WaitGroup
}

////////////////////////////////////////////////////////////////////////
// Dispatch machinery
////////////////////////////////////////////////////////////////////////

// invoke calls f, converting a panic into an EIO-flavored error so that the
// reply sink is resolved no matter what the file system does.
func invoke[Req any, R any](
	ctx context.Context,
	req *Req,
	f func(context.Context, *Req) (*R, error)) (resp *R, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("%w: operation panicked: %v", EIO, r)
		}
	}()

	return f(ctx, req)
}

// spawnReply schedules f(ctx, req) on its own goroutine and resolves reply
// with the outcome, exactly once.
func spawnReply[Req any, R any](
	s *fileSystemServer,
	opName string,
	reqID uint64,
	ctx context.Context,
	req *Req,
	reply Replier[R],
	f func(context.Context, *Req) (*R, error)) {
	s.opsInFlight.Add(1)
	go func() {
		defer s.opsInFlight.Done()

		logger := getLogger()
		logger.Printf("Op 0x%08x: <- %s", reqID, opName)

		ctx, report := reqtrace.StartSpan(ctx, opName)
		resp, err := invoke(ctx, req, f)
		report(err)

		if err != nil {
			logger.Printf("Op 0x%08x: -> %s error: %v", reqID, opName, err)
			reply.RespondError(err)
			return
		}

		logger.Printf("Op 0x%08x: -> %s OK", reqID, opName)
		reply.Respond(resp)
	}()
}

// spawnReplyEmpty is spawnReply for operations without a response payload.
func spawnReplyEmpty[Req any](
	s *fileSystemServer,
	opName string,
	reqID uint64,
	ctx context.Context,
	req *Req,
	reply EmptyReplier,
	f func(context.Context, *Req) error) {
	s.opsInFlight.Add(1)
	go func() {
		defer s.opsInFlight.Done()

		logger := getLogger()
		logger.Printf("Op 0x%08x: <- %s", reqID, opName)

		ctx, report := reqtrace.StartSpan(ctx, opName)
		_, err := invoke(ctx, req, func(ctx context.Context, req *Req) (*struct{}, error) {
			return nil, f(ctx, req)
		})
		report(err)

		if err != nil {
			logger.Printf("Op 0x%08x: -> %s error: %v", reqID, opName, err)
			reply.RespondError(err)
			return
		}

		logger.Printf("Op 0x%08x: -> %s OK", reqID, opName)
		reply.Respond()
	}()
}

////////////////////////////////////////////////////////////////////////
// Lifecycle
////////////////////////////////////////////////////////////////////////

func (s *fileSystemServer) Init(ctx context.Context, config *InitConfig) error {
	ctx, report := reqtrace.StartSpan(ctx, "Init")
	err := s.fs.Init(ctx, config)
	report(err)

	if err != nil {
		err = fmt.Errorf("Init: %w", err)
		return err
	}

	return nil
}

func (s *fileSystemServer) Destroy() {
	// Let in-flight ops finish and reply before tearing anything down.
	s.opsInFlight.Wait()
	s.fs.Destroy()
}

////////////////////////////////////////////////////////////////////////
// Inodes
////////////////////////////////////////////////////////////////////////

func (s *fileSystemServer) LookUpInode(
	ctx context.Context,
	req *LookUpInodeRequest,
	reply Replier[ChildInodeEntry]) {
	spawnReply(s, "LookUpInode", req.Header.ID, ctx, req, reply, s.fs.LookUpInode)
}

func (s *fileSystemServer) GetInodeAttributes(
	ctx context.Context,
	req *GetInodeAttributesRequest,
	reply Replier[AttributesResponse]) {
	spawnReply(s, "GetInodeAttributes", req.Header.ID, ctx, req, reply, s.fs.GetInodeAttributes)
}

func (s *fileSystemServer) SetInodeAttributes(
	ctx context.Context,
	req *SetInodeAttributesRequest,
	reply Replier[AttributesResponse]) {
	spawnReply(s, "SetInodeAttributes", req.Header.ID, ctx, req, reply, s.fs.SetInodeAttributes)
}

func (s *fileSystemServer) ForgetInode(
	ctx context.Context,
	req *ForgetInodeRequest) {
	s.opsInFlight.Add(1)
	go func() {
		defer s.opsInFlight.Done()

		// There is no reply sink to resolve, but a panic still mustn't take
		// down the process on the file system's behalf.
		defer func() {
			if r := recover(); r != nil {
				getLogger().Printf(
					"Op 0x%08x: ForgetInode panicked: %v",
					req.Header.ID,
					r)
			}
		}()

		getLogger().Printf("Op 0x%08x: <- ForgetInode", req.Header.ID)
		s.fs.ForgetInode(ctx, req)
	}()
}

func (s *fileSystemServer) ReadSymlink(
	ctx context.Context,
	req *ReadSymlinkRequest,
	reply Replier[ReadSymlinkResponse]) {
	spawnReply(s, "ReadSymlink", req.Header.ID, ctx, req, reply, s.fs.ReadSymlink)
}

////////////////////////////////////////////////////////////////////////
// Inode creation and the namespace
////////////////////////////////////////////////////////////////////////

func (s *fileSystemServer) MkNode(
	ctx context.Context,
	req *MkNodeRequest,
	reply Replier[ChildInodeEntry]) {
	spawnReply(s, "MkNode", req.Header.ID, ctx, req, reply, s.fs.MkNode)
}

func (s *fileSystemServer) MkDir(
	ctx context.Context,
	req *MkDirRequest,
	reply Replier[ChildInodeEntry]) {
	spawnReply(s, "MkDir", req.Header.ID, ctx, req, reply, s.fs.MkDir)
}

func (s *fileSystemServer) CreateSymlink(
	ctx context.Context,
	req *CreateSymlinkRequest,
	reply Replier[ChildInodeEntry]) {
	spawnReply(s, "CreateSymlink", req.Header.ID, ctx, req, reply, s.fs.CreateSymlink)
}

func (s *fileSystemServer) CreateLink(
	ctx context.Context,
	req *CreateLinkRequest,
	reply Replier[ChildInodeEntry]) {
	spawnReply(s, "CreateLink", req.Header.ID, ctx, req, reply, s.fs.CreateLink)
}

func (s *fileSystemServer) CreateFile(
	ctx context.Context,
	req *CreateFileRequest,
	reply Replier[CreateFileResponse]) {
	spawnReply(s, "CreateFile", req.Header.ID, ctx, req, reply, s.fs.CreateFile)
}

func (s *fileSystemServer) Unlink(
	ctx context.Context,
	req *UnlinkRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "Unlink", req.Header.ID, ctx, req, reply, s.fs.Unlink)
}

func (s *fileSystemServer) RmDir(
	ctx context.Context,
	req *RmDirRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "RmDir", req.Header.ID, ctx, req, reply, s.fs.RmDir)
}

func (s *fileSystemServer) Rename(
	ctx context.Context,
	req *RenameRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "Rename", req.Header.ID, ctx, req, reply, s.fs.Rename)
}

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

func (s *fileSystemServer) OpenFile(
	ctx context.Context,
	req *OpenFileRequest,
	reply Replier[OpenResponse]) {
	spawnReply(s, "OpenFile", req.Header.ID, ctx, req, reply, s.fs.OpenFile)
}

func (s *fileSystemServer) ReadFile(
	ctx context.Context,
	req *ReadFileRequest,
	reply Replier[ReadFileResponse]) {
	spawnReply(s, "ReadFile", req.Header.ID, ctx, req, reply, s.fs.ReadFile)
}

func (s *fileSystemServer) WriteFile(
	ctx context.Context,
	req *WriteFileRequest,
	reply Replier[WriteFileResponse]) {
	// The data aliases a transport buffer that may be reused as soon as this
	// callback returns.
	req.Data = append([]byte(nil), req.Data...)

	spawnReply(s, "WriteFile", req.Header.ID, ctx, req, reply, s.fs.WriteFile)
}

func (s *fileSystemServer) FlushFile(
	ctx context.Context,
	req *FlushFileRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "FlushFile", req.Header.ID, ctx, req, reply, s.fs.FlushFile)
}

func (s *fileSystemServer) ReleaseFileHandle(
	ctx context.Context,
	req *ReleaseFileHandleRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "ReleaseFileHandle", req.Header.ID, ctx, req, reply, s.fs.ReleaseFileHandle)
}

func (s *fileSystemServer) SyncFile(
	ctx context.Context,
	req *SyncFileRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "SyncFile", req.Header.ID, ctx, req, reply, s.fs.SyncFile)
}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

func (s *fileSystemServer) OpenDir(
	ctx context.Context,
	req *OpenDirRequest,
	reply Replier[OpenResponse]) {
	spawnReply(s, "OpenDir", req.Header.ID, ctx, req, reply, s.fs.OpenDir)
}

func (s *fileSystemServer) ReadDir(
	ctx context.Context,
	req *ReadDirRequest,
	reply DirectoryReplier) {
	s.opsInFlight.Add(1)
	go func() {
		defer s.opsInFlight.Done()

		guard := &dirReplyGuard{reply: reply}
		s.streamDir(ctx, "ReadDir", req.Header.ID, guard, func(ctx context.Context) {
			s.fs.ReadDir(ctx, req, guard)
		})
	}()
}

func (s *fileSystemServer) ReadDirPlus(
	ctx context.Context,
	req *ReadDirPlusRequest,
	reply DirectoryPlusReplier) {
	s.opsInFlight.Add(1)
	go func() {
		defer s.opsInFlight.Done()

		guard := &dirPlusReplyGuard{reply: reply}
		s.streamDir(ctx, "ReadDirPlus", req.Header.ID, guard, func(ctx context.Context) {
			s.fs.ReadDirPlus(ctx, req, guard)
		})
	}()
}

func (s *fileSystemServer) ReleaseDirHandle(
	ctx context.Context,
	req *ReleaseDirHandleRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "ReleaseDirHandle", req.Header.ID, ctx, req, reply, s.fs.ReleaseDirHandle)
}

func (s *fileSystemServer) SyncDir(
	ctx context.Context,
	req *SyncDirRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "SyncDir", req.Header.ID, ctx, req, reply, s.fs.SyncDir)
}

////////////////////////////////////////////////////////////////////////
// Statistics, xattrs, and the rest
////////////////////////////////////////////////////////////////////////

func (s *fileSystemServer) StatFS(
	ctx context.Context,
	req *StatFSRequest,
	reply Replier[StatFSResponse]) {
	spawnReply(s, "StatFS", req.Header.ID, ctx, req, reply, s.fs.StatFS)
}

func (s *fileSystemServer) SetXattr(
	ctx context.Context,
	req *SetXattrRequest,
	reply EmptyReplier) {
	// See the note on WriteFile.
	req.Value = append([]byte(nil), req.Value...)

	spawnReplyEmpty(s, "SetXattr", req.Header.ID, ctx, req, reply, s.fs.SetXattr)
}

func (s *fileSystemServer) GetXattr(
	ctx context.Context,
	req *GetXattrRequest,
	reply Replier[XattrResponse]) {
	spawnReply(s, "GetXattr", req.Header.ID, ctx, req, reply, s.fs.GetXattr)
}

func (s *fileSystemServer) ListXattr(
	ctx context.Context,
	req *ListXattrRequest,
	reply Replier[XattrResponse]) {
	spawnReply(s, "ListXattr", req.Header.ID, ctx, req, reply, s.fs.ListXattr)
}

func (s *fileSystemServer) RemoveXattr(
	ctx context.Context,
	req *RemoveXattrRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "RemoveXattr", req.Header.ID, ctx, req, reply, s.fs.RemoveXattr)
}

func (s *fileSystemServer) Access(
	ctx context.Context,
	req *AccessRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "Access", req.Header.ID, ctx, req, reply, s.fs.Access)
}

func (s *fileSystemServer) GetFileLock(
	ctx context.Context,
	req *GetFileLockRequest,
	reply Replier[GetFileLockResponse]) {
	spawnReply(s, "GetFileLock", req.Header.ID, ctx, req, reply, s.fs.GetFileLock)
}

func (s *fileSystemServer) SetFileLock(
	ctx context.Context,
	req *SetFileLockRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "SetFileLock", req.Header.ID, ctx, req, reply, s.fs.SetFileLock)
}

func (s *fileSystemServer) BMap(
	ctx context.Context,
	req *BMapRequest,
	reply Replier[BMapResponse]) {
	spawnReply(s, "BMap", req.Header.ID, ctx, req, reply, s.fs.BMap)
}

func (s *fileSystemServer) Ioctl(
	ctx context.Context,
	req *IoctlRequest,
	reply Replier[IoctlResponse]) {
	// See the note on WriteFile.
	req.Input = append([]byte(nil), req.Input...)

	spawnReply(s, "Ioctl", req.Header.ID, ctx, req, reply, s.fs.Ioctl)
}

func (s *fileSystemServer) Fallocate(
	ctx context.Context,
	req *FallocateRequest,
	reply EmptyReplier) {
	spawnReplyEmpty(s, "Fallocate", req.Header.ID, ctx, req, reply, s.fs.Fallocate)
}

func (s *fileSystemServer) LSeek(
	ctx context.Context,
	req *LSeekRequest,
	reply Replier[LSeekResponse]) {
	spawnReply(s, "LSeek", req.Header.ID, ctx, req, reply, s.fs.LSeek)
}

func (s *fileSystemServer) CopyFileRange(
	ctx context.Context,
	req *CopyFileRangeRequest,
	reply Replier[CopyFileRangeResponse]) {
	spawnReply(s, "CopyFileRange", req.Header.ID, ctx, req, reply, s.fs.CopyFileRange)
}

////////////////////////////////////////////////////////////////////////
// OS X only
////////////////////////////////////////////////////////////////////////

// notSupportedEmpty stands in for an OS X-only operation on a file system
// that doesn't implement DarwinFileSystem, so that the unsupported case takes
// the same dispatch path as everything else.
func notSupportedEmpty[Req any](ctx context.Context, req *Req) error {
	return ENOSYS
}

func notSupported[Req any, R any](ctx context.Context, req *Req) (*R, error) {
	return nil, ENOSYS
}

func (s *fileSystemServer) SetVolumeName(
	ctx context.Context,
	req *SetVolumeNameRequest,
	reply EmptyReplier) {
	f := notSupportedEmpty[SetVolumeNameRequest]
	if s.darwin != nil {
		f = s.darwin.SetVolumeName
	}

	spawnReplyEmpty(s, "SetVolumeName", req.Header.ID, ctx, req, reply, f)
}

func (s *fileSystemServer) ExchangeData(
	ctx context.Context,
	req *ExchangeDataRequest,
	reply EmptyReplier) {
	f := notSupportedEmpty[ExchangeDataRequest]
	if s.darwin != nil {
		f = s.darwin.ExchangeData
	}

	spawnReplyEmpty(s, "ExchangeData", req.Header.ID, ctx, req, reply, f)
}

func (s *fileSystemServer) GetXTimes(
	ctx context.Context,
	req *GetXTimesRequest,
	reply Replier[GetXTimesResponse]) {
	f := notSupported[GetXTimesRequest, GetXTimesResponse]
	if s.darwin != nil {
		f = s.darwin.GetXTimes
	}

	spawnReply(s, "GetXTimes", req.Header.ID, ctx, req, reply, f)
}

////////////////////////////////////////////////////////////////////////
// Streaming reply guards
////////////////////////////////////////////////////////////////////////

// streamDir runs a directory read with a finalization guard around its reply
// sink, so that the underlying sink sees exactly one finalization no matter
// how the file system behaves: a panic is converted to EIO, and returning
// without finalizing is treated as EIO as well.
func (s *fileSystemServer) streamDir(
	ctx context.Context,
	opName string,
	reqID uint64,
	guard finalizer,
	f func(context.Context)) {
	logger := getLogger()
	logger.Printf("Op 0x%08x: <- %s", reqID, opName)

	ctx, report := reqtrace.StartSpan(ctx, opName)

	func() {
		defer func() {
			if r := recover(); r != nil {
				guard.RespondError(
					fmt.Errorf("%w: operation panicked: %v", EIO, r))
			}
		}()

		f(ctx)
	}()

	if !guard.finalized() {
		guard.RespondError(fmt.Errorf("%w: %s returned without replying", EIO, opName))
	}

	err := guard.finalError()
	report(err)

	if err != nil {
		logger.Printf("Op 0x%08x: -> %s error: %v", reqID, opName, err)
		return
	}

	logger.Printf("Op 0x%08x: -> %s OK", reqID, opName)
}

type finalizer interface {
	RespondError(err error)
	finalized() bool
	finalError() error
}

// A pass-through DirectoryReplier that enforces the one-shot contract on the
// sink it wraps: the first finalization wins, later calls are dropped, and
// entries added after finalization are refused.
type dirReplyGuard struct {
	reply DirectoryReplier

	mu   sync.Mutex
	done bool
	err  error
}

func (g *dirReplyGuard) AddEntry(d Dirent) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return false
	}

	return g.reply.AddEntry(d)
}

func (g *dirReplyGuard) Respond() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return
	}

	g.done = true
	g.reply.Respond()
}

func (g *dirReplyGuard) RespondError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return
	}

	g.done = true
	g.err = err
	g.reply.RespondError(err)
}

func (g *dirReplyGuard) finalized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

func (g *dirReplyGuard) finalError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// dirReplyGuard's twin for ReadDirPlus.
type dirPlusReplyGuard struct {
	reply DirectoryPlusReplier

	mu   sync.Mutex
	done bool
	err  error
}

func (g *dirPlusReplyGuard) AddEntry(d DirentPlus) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return false
	}

	return g.reply.AddEntry(d)
}

func (g *dirPlusReplyGuard) Respond() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return
	}

	g.done = true
	g.reply.Respond()
}

func (g *dirPlusReplyGuard) RespondError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return
	}

	g.done = true
	g.err = err
	g.reply.RespondError(err)
}

func (g *dirPlusReplyGuard) finalized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

func (g *dirPlusReplyGuard) finalError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
