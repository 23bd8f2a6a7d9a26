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
	"time"

	"golang.org/x/net/context"
)

// Operations that only an OS X kernel sends. The types are defined
// unconditionally so that portable file systems can be compiled and tested
// anywhere, but a Linux transport will never deliver them.

// Rename the mounted volume, as displayed in the Finder.
type SetVolumeNameRequest struct {
	Header RequestHeader

	// The new name for the volume.
	Name string
}

// Atomically exchange two entries, as for exchangedata(2). Unlike Rename,
// both entries must exist, and both survive the operation under swapped
// names.
type ExchangeDataRequest struct {
	Header RequestHeader

	// The first entry's parent directory and name.
	OldParent InodeID
	OldName   string

	// The second entry's parent directory and name.
	NewParent InodeID
	NewName   string

	// Behavior options in the exchangedata(2) encoding.
	Options uint64
}

// Get the backup and creation times of an inode, as consumed by Time
// Machine.
type GetXTimesRequest struct {
	Header RequestHeader

	// The inode of interest.
	Inode InodeID
}

type GetXTimesResponse struct {
	Bkuptime time.Time
	Crtime   time.Time
}

// An optional extension of FileSystem for the OS X-only operations. The
// bridge probes for it with a type assertion; file systems that don't
// implement it fail these operations with ENOSYS, which the OS X kernel
// tolerates.
type DarwinFileSystem interface {
	FileSystem

	SetVolumeName(ctx context.Context, req *SetVolumeNameRequest) error
	ExchangeData(ctx context.Context, req *ExchangeDataRequest) error
	GetXTimes(ctx context.Context, req *GetXTimesRequest) (*GetXTimesResponse, error)
}
