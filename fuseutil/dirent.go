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
	"unsafe"

	"github.com/asyncfs/fuse"
)

// The format of a directory entry within the contents of a directory read
// reply, laid out as the kernel's struct fuse_dirent. The name follows the
// fixed-size header, padded with zero bytes to an eight-byte boundary.
type fuse_dirent struct {
	ino     uint64
	off     uint64
	namelen uint32
	type_   uint32
	name    [0]byte
}

// AppendDirent appends the supplied directory entry to the given buffer in
// the wire format the kernel expects from a directory read reply, returning
// the new buffer.
//
// Transports use this to encode the entries a DirectoryReplier accumulates;
// it is exported so that transports and test fakes agree on the format and
// on how much of a request's byte budget each entry consumes.
func AppendDirent(buf []byte, d fuse.Dirent) (newBuf []byte) {
	// We want to append bytes with the layout of fuse_dirent in memory.
	const alignment = 8
	const direntSize = 8 + 8 + 4 + 4

	// Write the header.
	de := fuse_dirent{
		ino:     uint64(d.Inode),
		off:     uint64(d.Offset),
		namelen: uint32(len(d.Name)),
		type_:   uint32(d.Type),
	}

	buf = append(buf, (*[direntSize]byte)(unsafe.Pointer(&de))[:]...)

	// Write the name afterward.
	buf = append(buf, d.Name...)

	// Pad to an alignment-byte boundary.
	var padding [alignment]byte
	if n := len(buf) % alignment; n != 0 {
		buf = append(buf, padding[:alignment-n]...)
	}

	return buf
}
