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

package errorfs

import (
	"os"
	"reflect"
	"sync"
	"syscall"

	"golang.org/x/net/context"

	"github.com/asyncfs/fuse"
	"github.com/asyncfs/fuse/fuseutil"
)

const FooContents = "xxxx"

const fooInodeID = fuse.RootInodeID + 1

// A file system whose sole contents are a file named "foo" containing the
// string defined by FooContents.
//
// The file system can be configured to return canned errors for particular
// operations using the method SetError.
type FS interface {
	fuse.FileSystem

	// Cause the file system to return the supplied error for all future
	// operations matching the supplied request type (e.g.
	// reflect.TypeOf(&fuse.ReadFileRequest{})).
	SetError(t reflect.Type, err syscall.Errno)
}

func New() (FS, error) {
	fs := &errorFS{
		errors: make(map[reflect.Type]syscall.Errno),
	}

	return fs, nil
}

type errorFS struct {
	fuseutil.NotImplementedFileSystem

	mu sync.Mutex

	errors map[reflect.Type]syscall.Errno // GUARDED_BY(mu)
}

func (fs *errorFS) SetError(t reflect.Type, err syscall.Errno) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.errors[t] = err
}

// If a canned error has been configured for the request's type, return it.
func (fs *errorFS) transformError(req interface{}) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err, ok := fs.errors[reflect.TypeOf(req)]; ok {
		return err
	}

	return nil
}

////////////////////////////////////////////////////////////////////////
// File system methods
////////////////////////////////////////////////////////////////////////

func fooAttributes() fuse.InodeAttributes {
	return fuse.InodeAttributes{
		Nlink: 1,
		Mode:  0444,
		Size:  uint64(len(FooContents)),
	}
}

func rootAttributes() fuse.InodeAttributes {
	return fuse.InodeAttributes{
		Nlink: 1,
		Mode:  0555 | os.ModeDir,
	}
}

func (fs *errorFS) LookUpInode(
	ctx context.Context,
	req *fuse.LookUpInodeRequest) (*fuse.ChildInodeEntry, error) {
	if err := fs.transformError(req); err != nil {
		return nil, err
	}

	if req.Parent != fuse.RootInodeID || req.Name != "foo" {
		return nil, fuse.ENOENT
	}

	return &fuse.ChildInodeEntry{
		Child:      fooInodeID,
		Attributes: fooAttributes(),
	}, nil
}

func (fs *errorFS) GetInodeAttributes(
	ctx context.Context,
	req *fuse.GetInodeAttributesRequest) (*fuse.AttributesResponse, error) {
	if err := fs.transformError(req); err != nil {
		return nil, err
	}

	switch req.Inode {
	case fuse.RootInodeID:
		return &fuse.AttributesResponse{Attributes: rootAttributes()}, nil

	case fooInodeID:
		return &fuse.AttributesResponse{Attributes: fooAttributes()}, nil
	}

	return nil, fuse.ENOENT
}

func (fs *errorFS) OpenFile(
	ctx context.Context,
	req *fuse.OpenFileRequest) (*fuse.OpenResponse, error) {
	if err := fs.transformError(req); err != nil {
		return nil, err
	}

	if req.Inode != fooInodeID {
		return nil, fuse.ENOENT
	}

	return &fuse.OpenResponse{}, nil
}

func (fs *errorFS) ReadFile(
	ctx context.Context,
	req *fuse.ReadFileRequest) (*fuse.ReadFileResponse, error) {
	if err := fs.transformError(req); err != nil {
		return nil, err
	}

	if req.Inode != fooInodeID {
		return nil, fuse.ENOENT
	}

	if req.Offset >= int64(len(FooContents)) {
		return &fuse.ReadFileResponse{}, nil
	}

	data := []byte(FooContents)[req.Offset:]
	if len(data) > req.Size {
		data = data[:req.Size]
	}

	return &fuse.ReadFileResponse{Data: data}, nil
}

func (fs *errorFS) OpenDir(
	ctx context.Context,
	req *fuse.OpenDirRequest) (*fuse.OpenResponse, error) {
	if err := fs.transformError(req); err != nil {
		return nil, err
	}

	if req.Inode != fuse.RootInodeID {
		return nil, fuse.ENOENT
	}

	return &fuse.OpenResponse{}, nil
}

func (fs *errorFS) ReadDir(
	ctx context.Context,
	req *fuse.ReadDirRequest,
	reply fuse.DirectoryReplier) {
	if err := fs.transformError(req); err != nil {
		reply.RespondError(err)
		return
	}

	if req.Inode != fuse.RootInodeID {
		reply.RespondError(fuse.ENOENT)
		return
	}

	if req.Offset == 0 {
		reply.AddEntry(fuse.Dirent{
			Offset: 1,
			Inode:  fooInodeID,
			Name:   "foo",
			Type:   fuse.DT_File,
		})
	}

	reply.Respond()
}
