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

import "golang.org/x/sys/unix"

// Whence values for LSeekRequest, in the host's lseek(2) encoding. Note that
// the numeric values differ between Linux and Darwin.
const (
	// Seek to the first byte of data at or after the offset.
	SeekData = uint32(unix.SEEK_DATA)

	// Seek to the first hole at or after the offset. The implicit hole at
	// the end of the file counts.
	SeekHole = uint32(unix.SEEK_HOLE)
)
