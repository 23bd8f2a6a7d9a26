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

package flushfs_test

import (
	"io/ioutil"
	"os"
	"sync"
	"testing"

	"github.com/asyncfs/fuse"
	"github.com/asyncfs/fuse/fusetesting"
	"github.com/asyncfs/fuse/samples/flushfs"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"golang.org/x/net/context"
)

func TestFlushFS(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type FlushFSTest struct {
	ctx     context.Context
	backing *os.File
	server  fuse.RawFileSystem

	mu sync.Mutex

	// GUARDED_BY(mu)
	flushes []string

	// GUARDED_BY(mu)
	fsyncs []string
}

func init() { RegisterTestSuite(&FlushFSTest{}) }

func (t *FlushFSTest) SetUp(ti *TestInfo) {
	var err error

	t.ctx = context.Background()

	t.backing, err = ioutil.TempFile("", "flushfs_test")
	AssertEq(nil, err)

	reportTo := func(slice *[]string) func(string) {
		return func(s string) {
			t.mu.Lock()
			defer t.mu.Unlock()
			*slice = append(*slice, s)
		}
	}

	fs, err := flushfs.NewFileSystem(
		t.backing,
		reportTo(&t.flushes),
		reportTo(&t.fsyncs))
	AssertEq(nil, err)

	t.server = fuse.NewRawFileSystem(fs)
	AssertEq(nil, t.server.Init(t.ctx, &fuse.InitConfig{}))
}

func (t *FlushFSTest) TearDown() {
	t.server.Destroy()

	path := t.backing.Name()
	t.backing.Close()
	os.Remove(path)
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

var nextRequestID uint64

func header(id *uint64) fuse.RequestHeader {
	*id++
	return fuse.RequestHeader{ID: *id}
}

func (t *FlushFSTest) lookUpFoo() fuse.InodeID {
	reply := fusetesting.NewReplyRecorder[fuse.ChildInodeEntry]()
	t.server.LookUpInode(
		t.ctx,
		&fuse.LookUpInodeRequest{
			Header: header(&nextRequestID),
			Parent: fuse.RootInodeID,
			Name:   "foo",
		},
		reply)

	entry, err := reply.Wait()
	AssertEq(nil, err)
	return entry.Child
}

func (t *FlushFSTest) open(inode fuse.InodeID) fuse.HandleID {
	reply := fusetesting.NewReplyRecorder[fuse.OpenResponse]()
	t.server.OpenFile(
		t.ctx,
		&fuse.OpenFileRequest{Header: header(&nextRequestID), Inode: inode},
		reply)

	resp, err := reply.Wait()
	AssertEq(nil, err)
	return resp.Handle
}

func (t *FlushFSTest) write(inode fuse.InodeID, h fuse.HandleID, s string) {
	reply := fusetesting.NewReplyRecorder[fuse.WriteFileResponse]()
	t.server.WriteFile(
		t.ctx,
		&fuse.WriteFileRequest{
			Header: header(&nextRequestID),
			Inode:  inode,
			Handle: h,
			Data:   []byte(s),
		},
		reply)

	resp, err := reply.Wait()
	AssertEq(nil, err)
	AssertEq(len(s), resp.Size)
}

func (t *FlushFSTest) flush(inode fuse.InodeID, h fuse.HandleID) error {
	reply := fusetesting.NewEmptyReplyRecorder()
	t.server.FlushFile(
		t.ctx,
		&fuse.FlushFileRequest{
			Header: header(&nextRequestID),
			Inode:  inode,
			Handle: h,
		},
		reply)

	return reply.Wait()
}

func (t *FlushFSTest) release(inode fuse.InodeID, h fuse.HandleID) error {
	reply := fusetesting.NewEmptyReplyRecorder()
	t.server.ReleaseFileHandle(
		t.ctx,
		&fuse.ReleaseFileHandleRequest{
			Header: header(&nextRequestID),
			Inode:  inode,
			Handle: h,
		},
		reply)

	return reply.Wait()
}

func (t *FlushFSTest) getFlushes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.flushes...)
}

func (t *FlushFSTest) getFsyncs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.fsyncs...)
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *FlushFSTest) OpenMintsDistinctHandles() {
	fooID := t.lookUpFoo()

	h1 := t.open(fooID)
	h2 := t.open(fooID)

	ExpectNe(h1, h2)

	AssertEq(nil, t.release(fooID, h1))
	AssertEq(nil, t.release(fooID, h2))
}

func (t *FlushFSTest) FlushMayArriveManyTimesPerHandle() {
	fooID := t.lookUpFoo()
	h := t.open(fooID)

	// Simulate the handle's descriptor being dup'd and both copies closed:
	// two flushes, then the release.
	t.write(fooID, h, "taco")
	AssertEq(nil, t.flush(fooID, h))

	t.write(fooID, h, "burr")
	AssertEq(nil, t.flush(fooID, h))

	// The handle is still usable between flushes.
	t.write(fooID, h, "burrito")

	AssertEq(nil, t.release(fooID, h))

	ExpectThat(t.getFlushes(), ElementsAre("taco", "burr"))
	ExpectThat(t.getFsyncs(), ElementsAre())
}

func (t *FlushFSTest) FsyncReportsContents() {
	fooID := t.lookUpFoo()
	h := t.open(fooID)

	t.write(fooID, h, "enchilada")

	reply := fusetesting.NewEmptyReplyRecorder()
	t.server.SyncFile(
		t.ctx,
		&fuse.SyncFileRequest{
			Header: header(&nextRequestID),
			Inode:  fooID,
			Handle: h,
		},
		reply)
	AssertEq(nil, reply.Wait())

	ExpectThat(t.getFsyncs(), ElementsAre("enchilada"))
	ExpectThat(t.getFlushes(), ElementsAre())

	AssertEq(nil, t.release(fooID, h))
}

func (t *FlushFSTest) FallocateExtendsFile() {
	fooID := t.lookUpFoo()
	h := t.open(fooID)

	reply := fusetesting.NewEmptyReplyRecorder()
	t.server.Fallocate(
		t.ctx,
		&fuse.FallocateRequest{
			Header: header(&nextRequestID),
			Inode:  fooID,
			Handle: h,
			Offset: 0,
			Length: 64,
		},
		reply)
	AssertEq(nil, reply.Wait())

	attrReply := fusetesting.NewReplyRecorder[fuse.AttributesResponse]()
	t.server.GetInodeAttributes(
		t.ctx,
		&fuse.GetInodeAttributesRequest{Header: header(&nextRequestID), Inode: fooID},
		attrReply)

	resp, err := attrReply.Wait()
	AssertEq(nil, err)
	ExpectEq(64, resp.Attributes.Size)

	AssertEq(nil, t.release(fooID, h))
}
