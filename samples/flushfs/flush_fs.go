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

// Package flushfs provides a file system containing a single file, for
// observing when flushes and fsyncs are delivered relative to opens and
// releases.
package flushfs

import (
	"fmt"
	"io"
	"os"
	"sync"

	fallocate "github.com/detailyang/go-fallocate"
	"golang.org/x/net/context"

	"github.com/asyncfs/fuse"
	"github.com/asyncfs/fuse/fuseutil"
)

// Create a file system containing a single file named "foo", backed by the
// supplied file (whose initial contents become foo's).
//
// The file may be opened for reading and/or writing. Whenever a flush or
// fsync is received, the supplied function is called with the current
// contents of the file.
func NewFileSystem(
	backing *os.File,
	reportFlush func(string),
	reportFsync func(string)) (fuse.FileSystem, error) {
	fs := &flushFS{
		foo:         backing,
		reportFlush: reportFlush,
		reportFsync: reportFsync,
		handles:     make(map[fuse.HandleID]struct{}),
	}

	return fs, nil
}

const fooID = fuse.RootInodeID + 1

type flushFS struct {
	fuseutil.NotImplementedFileSystem

	reportFlush func(string)
	reportFsync func(string)

	mu  sync.Mutex
	foo *os.File // GUARDED_BY(mu)

	// Handles minted by OpenFile and not yet released. Releasing a handle
	// that isn't here is a protocol violation we want tests to catch.
	handles    map[fuse.HandleID]struct{} // GUARDED_BY(mu)
	nextHandle fuse.HandleID              // GUARDED_BY(mu)
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

func (fs *flushFS) rootAttributes() fuse.InodeAttributes {
	return fuse.InodeAttributes{
		Nlink: 1,
		Mode:  0777 | os.ModeDir,
	}
}

// LOCKS_REQUIRED(fs.mu)
func (fs *flushFS) fooAttributes() fuse.InodeAttributes {
	var size uint64
	if fi, err := fs.foo.Stat(); err == nil {
		size = uint64(fi.Size())
	}

	return fuse.InodeAttributes{
		Nlink: 1,
		Mode:  0777,
		Size:  size,
	}
}

// LOCKS_REQUIRED(fs.mu)
func (fs *flushFS) fooContents() string {
	fi, err := fs.foo.Stat()
	if err != nil {
		panic(err)
	}

	buf := make([]byte, fi.Size())
	if _, err := fs.foo.ReadAt(buf, 0); err != nil {
		panic(err)
	}

	return string(buf)
}

////////////////////////////////////////////////////////////////////////
// File system methods
////////////////////////////////////////////////////////////////////////

func (fs *flushFS) LookUpInode(
	ctx context.Context,
	req *fuse.LookUpInodeRequest) (*fuse.ChildInodeEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Sanity check.
	if req.Parent != fuse.RootInodeID || req.Name != "foo" {
		return nil, fuse.ENOENT
	}

	return &fuse.ChildInodeEntry{
		Child:      fooID,
		Attributes: fs.fooAttributes(),
	}, nil
}

func (fs *flushFS) GetInodeAttributes(
	ctx context.Context,
	req *fuse.GetInodeAttributesRequest) (*fuse.AttributesResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch req.Inode {
	case fuse.RootInodeID:
		return &fuse.AttributesResponse{Attributes: fs.rootAttributes()}, nil

	case fooID:
		return &fuse.AttributesResponse{Attributes: fs.fooAttributes()}, nil
	}

	return nil, fuse.ENOENT
}

func (fs *flushFS) SetInodeAttributes(
	ctx context.Context,
	req *fuse.SetInodeAttributesRequest) (*fuse.AttributesResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if req.Inode != fooID {
		return nil, fuse.ENOENT
	}

	// Truncation is the only change we support.
	if req.Size != nil {
		if err := fs.foo.Truncate(int64(*req.Size)); err != nil {
			return nil, err
		}
	}

	return &fuse.AttributesResponse{Attributes: fs.fooAttributes()}, nil
}

func (fs *flushFS) OpenFile(
	ctx context.Context,
	req *fuse.OpenFileRequest) (*fuse.OpenResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if req.Inode != fooID {
		return nil, fuse.ENOENT
	}

	// Mint a handle, to be retired by exactly one release.
	fs.nextHandle++
	h := fs.nextHandle
	fs.handles[h] = struct{}{}

	return &fuse.OpenResponse{Handle: h}, nil
}

func (fs *flushFS) ReadFile(
	ctx context.Context,
	req *fuse.ReadFileRequest) (*fuse.ReadFileResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	buf := make([]byte, req.Size)
	n, err := fs.foo.ReadAt(buf, req.Offset)

	// A short read is how EOF is signalled, not an error.
	if err != nil && err != io.EOF {
		return nil, err
	}

	return &fuse.ReadFileResponse{Data: buf[:n]}, nil
}

func (fs *flushFS) WriteFile(
	ctx context.Context,
	req *fuse.WriteFileRequest) (*fuse.WriteFileResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.foo.WriteAt(req.Data, req.Offset)
	if err != nil {
		return nil, err
	}

	return &fuse.WriteFileResponse{Size: n}, nil
}

func (fs *flushFS) FlushFile(
	ctx context.Context,
	req *fuse.FlushFileRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.reportFlush(fs.fooContents())
	return nil
}

func (fs *flushFS) SyncFile(
	ctx context.Context,
	req *fuse.SyncFileRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.foo.Sync(); err != nil {
		return err
	}

	fs.reportFsync(fs.fooContents())
	return nil
}

func (fs *flushFS) ReleaseFileHandle(
	ctx context.Context,
	req *fuse.ReleaseFileHandleRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.handles[req.Handle]; !ok {
		panic(fmt.Sprintf("Release of unknown handle: %v", req.Handle))
	}

	delete(fs.handles, req.Handle)
	return nil
}

func (fs *flushFS) Fallocate(
	ctx context.Context,
	req *fuse.FallocateRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if req.Inode != fooID {
		return fuse.ENOENT
	}

	if req.Mode != 0 {
		return fuse.EOPNOTSUPP
	}

	return fallocate.Fallocate(fs.foo, req.Offset, req.Length)
}

func (fs *flushFS) OpenDir(
	ctx context.Context,
	req *fuse.OpenDirRequest) (*fuse.OpenResponse, error) {
	if req.Inode != fuse.RootInodeID {
		return nil, fuse.ENOENT
	}

	return &fuse.OpenResponse{}, nil
}

func (fs *flushFS) ReadDir(
	ctx context.Context,
	req *fuse.ReadDirRequest,
	reply fuse.DirectoryReplier) {
	if req.Inode != fuse.RootInodeID {
		reply.RespondError(fuse.ENOENT)
		return
	}

	if req.Offset == 0 {
		reply.AddEntry(fuse.Dirent{
			Offset: 1,
			Inode:  fooID,
			Name:   "foo",
			Type:   fuse.DT_File,
		})
	}

	reply.Respond()
}
