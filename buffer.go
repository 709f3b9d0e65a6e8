package aio

// chunkBuffer is a FIFO of byte chunks with a running total size. It
// backs both read and write sides of a stream connection. Chunks are
// never flattened eagerly — mergePrefix is the one operation that
// rearranges chunks, and it only coalesces as much as a caller actually
// asked for.
type chunkBuffer struct {
	chunks []([]byte)
	size   int
}

func (b *chunkBuffer) append(p []byte) {
	if len(p) == 0 {
		return
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	b.chunks = append(b.chunks, cp)
	b.size += len(cp)
}

func (b *chunkBuffer) empty() bool { return b.size == 0 }

// mergePrefix rearranges b so that after the call, either the head chunk
// has length >= min(n, b.size), or b is empty. The concatenated byte
// sequence of b is unchanged; chunks may be split and later chunks
// merged into a new head.
func (b *chunkBuffer) mergePrefix(n int) {
	if len(b.chunks) == 1 && len(b.chunks[0]) <= n {
		return
	}
	if n > b.size {
		n = b.size
	}
	prefix := make([]byte, 0, n)
	remaining := n
	idx := 0
	for idx < len(b.chunks) && remaining > 0 {
		chunk := b.chunks[idx]
		if len(chunk) > remaining {
			prefix = append(prefix, chunk[:remaining]...)
			b.chunks[idx] = chunk[remaining:]
			remaining = 0
			break
		}
		prefix = append(prefix, chunk...)
		remaining -= len(chunk)
		idx++
	}
	rest := b.chunks[idx:]
	merged := make([][]byte, 0, len(rest)+1)
	merged = append(merged, prefix)
	merged = append(merged, rest...)
	b.chunks = merged
}

// popFront removes and returns the coalesced head chunk, which after a
// preceding mergePrefix(n) call has length >= min(n, original size).
func (b *chunkBuffer) popFront() []byte {
	if len(b.chunks) == 0 {
		return nil
	}
	head := b.chunks[0]
	b.chunks = b.chunks[1:]
	b.size -= len(head)
	return head
}

// peekHeadLen returns the length of the current head chunk without
// removing it, or 0 if the buffer is empty.
func (b *chunkBuffer) peekHeadLen() int {
	if len(b.chunks) == 0 {
		return 0
	}
	return len(b.chunks[0])
}

// indexDelim searches the coalesced head chunk for delim, returning the
// byte offset one past the end of the match, or -1 if not found. Only the
// head chunk is searched, so callers mergePrefix first (ReadUntil merges
// up to its byte budget); a match that still spans a chunk boundary
// after the merge is not found.
func (b *chunkBuffer) indexDelim(delim []byte) int {
	if len(b.chunks) == 0 {
		return -1
	}
	head := b.chunks[0]
	for i := 0; i+len(delim) <= len(head); i++ {
		if string(head[i:i+len(delim)]) == string(delim) {
			return i + len(delim)
		}
	}
	return -1
}

// takeFront removes and returns exactly n bytes from the front of the
// buffer, which must hold at least n bytes. Callers mergePrefix(n) first.
func (b *chunkBuffer) takeFront(n int) []byte {
	b.mergePrefix(n)
	head := b.popFront()
	if len(head) == n {
		return head
	}
	// head is shorter than n only if the buffer held fewer than n bytes
	// total; callers are required to check that before calling takeFront.
	return head
}
