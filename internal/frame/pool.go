// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package frame

import "sync"

// ReadChunkSize is the buffer size handed to a transport for one receive.
const ReadChunkSize = MaxExtendedDataLength + ExtendedOverhead

var chunkPool = sync.Pool{
	New: func() any {
		buf := make([]byte, ReadChunkSize)
		return &buf
	},
}

// GetChunk returns a ReadChunkSize buffer from the pool.
func GetChunk() []byte {
	bufPtr, ok := chunkPool.Get().(*[]byte)
	if !ok {
		return make([]byte, ReadChunkSize)
	}
	return (*bufPtr)[:ReadChunkSize]
}

// PutChunk returns a buffer obtained from GetChunk. Other buffers are
// left to the garbage collector.
func PutChunk(buf []byte) {
	if cap(buf) != ReadChunkSize {
		return
	}
	clear(buf[:cap(buf)])
	full := buf[:ReadChunkSize]
	chunkPool.Put(&full)
}
