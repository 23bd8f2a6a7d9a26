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
	"errors"
	"syscall"
)

// Errors corresponding to kernel error numbers. A file system reports a
// failure by returning one of these (or any syscall.Errno, or an error
// wrapping one) from an operation method. They may be treated as
// interchangeable with the syscall package's values of the same name.
const (
	EAGAIN     = syscall.EAGAIN
	EACCES     = syscall.EACCES
	EEXIST     = syscall.EEXIST
	EINTR      = syscall.EINTR
	EINVAL     = syscall.EINVAL
	EIO        = syscall.EIO
	EISDIR     = syscall.EISDIR
	ENOENT     = syscall.ENOENT
	ENOSYS     = syscall.ENOSYS
	ENOTDIR    = syscall.ENOTDIR
	ENOTEMPTY  = syscall.ENOTEMPTY
	ENXIO      = syscall.ENXIO
	EOPNOTSUPP = syscall.EOPNOTSUPP
	EPERM      = syscall.EPERM
	ERANGE     = syscall.ERANGE
)

// ErrnoFor returns the kernel error number a transport should send for an
// error produced by a file system operation, or zero for a nil error.
//
// The error's chain is searched for a syscall.Errno, so file systems are free
// to decorate errors with fmt.Errorf and %w on the way up. Errors carrying no
// errno at all map to ENOSYS, the same answer an unimplemented operation
// gives: an error the file system didn't phrase for the kernel is treated as
// the file system not (correctly) implementing the operation. File systems
// that mean "something broke" should say EIO explicitly.
func ErrnoFor(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	return ENOSYS
}
