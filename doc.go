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

// Package fuse bridges a concurrency-friendly file system contract onto the
// synchronous, one-reply-per-request callback surface a FUSE kernel transport
// expects.
//
// The primary elements of interest are:
//
//  *  The FileSystem interface, which defines the operations a file system
//     may implement. Each method receives a context and a typed request
//     struct, and produces a typed response or an error.
//
//  *  fuseutil.NotImplementedFileSystem, which may be embedded to obtain
//     default implementations for all operations that are not of interest to
//     a particular file system.
//
//  *  NewRawFileSystem, which wraps a FileSystem in a RawFileSystem: the
//     per-operation callback surface a kernel transport invokes. Every
//     callback schedules the corresponding FileSystem method on its own
//     goroutine and guarantees that the transport-supplied reply sink is
//     used exactly once, without blocking the caller.
//
// The kernel transport itself -- the layer that speaks to /dev/fuse, frames
// requests, and writes replies back to the kernel -- is not part of this
// package. It is consumed purely through the RawFileSystem and reply-sink
// contracts defined here.
package fuse
