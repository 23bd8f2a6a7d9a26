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

package errorfs_test

import (
	"reflect"
	"syscall"
	"testing"

	"github.com/asyncfs/fuse"
	"github.com/asyncfs/fuse/fusetesting"
	"github.com/asyncfs/fuse/samples/errorfs"
	. "github.com/jacobsa/ogletest"
	"golang.org/x/net/context"
)

func TestErrorFS(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type ErrorFSTest struct {
	ctx    context.Context
	fs     errorfs.FS
	server fuse.RawFileSystem
}

func init() { RegisterTestSuite(&ErrorFSTest{}) }

func (t *ErrorFSTest) SetUp(ti *TestInfo) {
	var err error

	t.ctx = context.Background()

	t.fs, err = errorfs.New()
	AssertEq(nil, err)

	t.server = fuse.NewRawFileSystem(t.fs)
	AssertEq(nil, t.server.Init(t.ctx, &fuse.InitConfig{}))
}

func (t *ErrorFSTest) TearDown() {
	t.server.Destroy()
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

var nextRequestID uint64

func header() fuse.RequestHeader {
	nextRequestID++
	return fuse.RequestHeader{ID: nextRequestID}
}

func (t *ErrorFSTest) lookUpFoo() (*fuse.ChildInodeEntry, error) {
	reply := fusetesting.NewReplyRecorder[fuse.ChildInodeEntry]()
	t.server.LookUpInode(
		t.ctx,
		&fuse.LookUpInodeRequest{
			Header: header(),
			Parent: fuse.RootInodeID,
			Name:   "foo",
		},
		reply)

	return reply.Wait()
}

func (t *ErrorFSTest) readFoo(inode fuse.InodeID) (string, error) {
	reply := fusetesting.NewReplyRecorder[fuse.ReadFileResponse]()
	t.server.ReadFile(
		t.ctx,
		&fuse.ReadFileRequest{
			Header: header(),
			Inode:  inode,
			Offset: 0,
			Size:   1024,
		},
		reply)

	resp, err := reply.Wait()
	if err != nil {
		return "", err
	}

	return string(resp.Data), nil
}

func (t *ErrorFSTest) readRoot() ([]fuse.Dirent, error) {
	reply := fusetesting.NewDirectoryReplyRecorder(4096)
	t.server.ReadDir(
		t.ctx,
		&fuse.ReadDirRequest{
			Header: header(),
			Inode:  fuse.RootInodeID,
			Offset: 0,
			Size:   4096,
		},
		reply)

	return reply.Wait()
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *ErrorFSTest) SuccessByDefault() {
	entry, err := t.lookUpFoo()
	AssertEq(nil, err)

	contents, err := t.readFoo(entry.Child)
	AssertEq(nil, err)
	ExpectEq(errorfs.FooContents, contents)

	entries, err := t.readRoot()
	AssertEq(nil, err)
	AssertEq(1, len(entries))
	ExpectEq("foo", entries[0].Name)
}

func (t *ErrorFSTest) ReadError() {
	t.fs.SetError(reflect.TypeOf(&fuse.ReadFileRequest{}), syscall.EIO)

	// Lookup is unaffected.
	entry, err := t.lookUpFoo()
	AssertEq(nil, err)

	_, err = t.readFoo(entry.Child)
	ExpectEq(fuse.EIO, fuse.ErrnoFor(err))
}

func (t *ErrorFSTest) LookupError() {
	t.fs.SetError(reflect.TypeOf(&fuse.LookUpInodeRequest{}), syscall.ENOENT)

	_, err := t.lookUpFoo()
	ExpectEq(fuse.ENOENT, fuse.ErrnoFor(err))
}

func (t *ErrorFSTest) ReadDirError() {
	t.fs.SetError(reflect.TypeOf(&fuse.ReadDirRequest{}), syscall.EACCES)

	_, err := t.readRoot()
	ExpectEq(fuse.EACCES, fuse.ErrnoFor(err))

	// Reads of the file remain unaffected.
	entry, err := t.lookUpFoo()
	AssertEq(nil, err)

	contents, err := t.readFoo(entry.Child)
	AssertEq(nil, err)
	ExpectEq(errorfs.FooContents, contents)
}
