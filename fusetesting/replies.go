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

// Package fusetesting provides in-process stand-ins for the reply sinks a
// kernel transport would supply, for use in tests that drive a RawFileSystem
// directly.
//
// Unlike a real transport, the recorders tolerate (and count) extra
// finalizations, so tests can assert on the exactly-once contract rather
// than crash when it is violated.
package fusetesting

import (
	"sync"

	"github.com/asyncfs/fuse"
	"github.com/asyncfs/fuse/fuseutil"
)

// A fuse.Replier that records what is delivered to it. The first
// finalization wins and is what Wait reports; later ones only bump the
// count.
type ReplyRecorder[R any] struct {
	mu    sync.Mutex
	count int
	resp  *R
	err   error

	done chan struct{}
}

func NewReplyRecorder[R any]() *ReplyRecorder[R] {
	return &ReplyRecorder[R]{done: make(chan struct{})}
}

func (r *ReplyRecorder[R]) Respond(resp *R) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	if r.count == 1 {
		r.resp = resp
		close(r.done)
	}
}

func (r *ReplyRecorder[R]) RespondError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	if r.count == 1 {
		r.err = err
		close(r.done)
	}
}

// Wait blocks until the first finalization and returns what it carried.
func (r *ReplyRecorder[R]) Wait() (*R, error) {
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resp, r.err
}

// ReplyCount returns the number of finalizations seen so far. One, after
// Wait has returned, means the sink was used correctly.
func (r *ReplyRecorder[R]) ReplyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// ReplyRecorder's counterpart for fuse.EmptyReplier.
type EmptyReplyRecorder struct {
	mu    sync.Mutex
	count int
	err   error

	done chan struct{}
}

func NewEmptyReplyRecorder() *EmptyReplyRecorder {
	return &EmptyReplyRecorder{done: make(chan struct{})}
}

func (r *EmptyReplyRecorder) Respond() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	if r.count == 1 {
		close(r.done)
	}
}

func (r *EmptyReplyRecorder) RespondError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	if r.count == 1 {
		r.err = err
		close(r.done)
	}
}

func (r *EmptyReplyRecorder) Wait() error {
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *EmptyReplyRecorder) ReplyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// A fuse.DirectoryReplier that accumulates entries against a byte budget,
// accounting for them exactly as a transport encoding them with
// fuseutil.AppendDirent would.
type DirectoryReplyRecorder struct {
	mu      sync.Mutex
	size    int
	buf     []byte
	entries []fuse.Dirent
	count   int
	err     error

	done chan struct{}
}

// NewDirectoryReplyRecorder creates a recorder with the given byte budget,
// as a transport would from fuse.ReadDirRequest.Size. A non-positive size
// means no limit.
func NewDirectoryReplyRecorder(size int) *DirectoryReplyRecorder {
	return &DirectoryReplyRecorder{
		size: size,
		done: make(chan struct{}),
	}
}

func (r *DirectoryReplyRecorder) AddEntry(d fuse.Dirent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count > 0 {
		return false
	}

	newBuf := fuseutil.AppendDirent(r.buf, d)
	if r.size > 0 && len(newBuf) > r.size {
		return false
	}

	r.buf = newBuf
	r.entries = append(r.entries, d)
	return true
}

func (r *DirectoryReplyRecorder) Respond() {
	r.finalize(nil)
}

func (r *DirectoryReplyRecorder) RespondError(err error) {
	r.finalize(err)
}

func (r *DirectoryReplyRecorder) finalize(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	if r.count == 1 {
		r.err = err
		close(r.done)
	}
}

// Wait blocks until the first finalization, returning the entries added
// before it and the error it carried, if any.
func (r *DirectoryReplyRecorder) Wait() ([]fuse.Dirent, error) {
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, r.err
}

// Bytes returns the encoded form of the entries accepted so far.
func (r *DirectoryReplyRecorder) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf
}

func (r *DirectoryReplyRecorder) ReplyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// The per-entry fixed overhead of a readdirplus record beyond the plain
// dirent encoding: the fuse_entry_out header preceding each dirent.
const direntPlusOverhead = 128

// DirectoryReplyRecorder's counterpart for fuse.DirectoryPlusReplier. The
// budget accounting adds direntPlusOverhead per entry on top of the dirent
// encoding.
type DirectoryPlusReplyRecorder struct {
	mu      sync.Mutex
	size    int
	used    int
	entries []fuse.DirentPlus
	count   int
	err     error

	done chan struct{}
}

func NewDirectoryPlusReplyRecorder(size int) *DirectoryPlusReplyRecorder {
	return &DirectoryPlusReplyRecorder{
		size: size,
		done: make(chan struct{}),
	}
}

func (r *DirectoryPlusReplyRecorder) AddEntry(d fuse.DirentPlus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count > 0 {
		return false
	}

	cost := direntPlusOverhead + len(fuseutil.AppendDirent(nil, d.Dirent))
	if r.size > 0 && r.used+cost > r.size {
		return false
	}

	r.used += cost
	r.entries = append(r.entries, d)
	return true
}

func (r *DirectoryPlusReplyRecorder) Respond() {
	r.finalize(nil)
}

func (r *DirectoryPlusReplyRecorder) RespondError(err error) {
	r.finalize(err)
}

func (r *DirectoryPlusReplyRecorder) finalize(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	if r.count == 1 {
		r.err = err
		close(r.done)
	}
}

func (r *DirectoryPlusReplyRecorder) Wait() ([]fuse.DirentPlus, error) {
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, r.err
}

func (r *DirectoryPlusReplyRecorder) ReplyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
