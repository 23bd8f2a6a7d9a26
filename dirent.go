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

import "syscall"

type DirentType uint32

const (
	DT_Unknown   DirentType = 0
	DT_Socket    DirentType = syscall.DT_SOCK
	DT_Link      DirentType = syscall.DT_LNK
	DT_File      DirentType = syscall.DT_REG
	DT_Block     DirentType = syscall.DT_BLK
	DT_Directory DirentType = syscall.DT_DIR
	DT_Char      DirentType = syscall.DT_CHR
	DT_FIFO      DirentType = syscall.DT_FIFO
)

// A struct representing an entry within a directory file, describing a child.
// See notes on ReadDirRequest and on fuseutil.AppendDirent for details.
type Dirent struct {
	// The (opaque) offset within the directory file of the entry following
	// this one. See notes on ReadDirRequest.Offset for details.
	Offset DirOffset

	// The inode of the child file or directory, and its name within the
	// parent.
	Inode InodeID
	Name  string

	// The type of the child. The zero value (DT_Unknown) is legal, but means
	// that the kernel will need to call GetInodeAttributes when the type is
	// needed.
	Type DirentType
}

// A directory entry enriched with the child's full inode entry, as produced
// by ReadDirPlus. Each record both lists the child and primes the kernel's
// dentry and attribute caches for it, so a returned entry counts as a lookup
// for the purposes of Forget reference counting.
type DirentPlus struct {
	Dirent

	// The entry the kernel should cache for the child, exactly as a
	// LookUpInode response would carry it.
	Entry ChildInodeEntry
}
