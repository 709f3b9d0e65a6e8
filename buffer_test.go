package aio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func concatChunks(chunks [][]byte) []byte {
	var buf bytes.Buffer
	for _, c := range chunks {
		buf.Write(c)
	}
	return buf.Bytes()
}

func TestChunkBuffer_MergePrefixCoalescesWithoutChangingContent(t *testing.T) {
	var b chunkBuffer
	b.append([]byte("he"))
	b.append([]byte("ll"))
	b.append([]byte("o world"))

	want := concatChunks(b.chunks)

	b.mergePrefix(5)
	require.NotEmpty(t, b.chunks)
	assert.GreaterOrEqual(t, len(b.chunks[0]), 5)
	assert.Equal(t, want, concatChunks(b.chunks))
}

func TestChunkBuffer_MergePrefixBeyondTotalCoalescesEverything(t *testing.T) {
	var b chunkBuffer
	b.append([]byte("ab"))
	b.append([]byte("cd"))

	b.mergePrefix(1000)
	require.Len(t, b.chunks, 1)
	assert.Equal(t, "abcd", string(b.chunks[0]))
}

func TestChunkBuffer_MergePrefixOnEmptyBufferIsNoOp(t *testing.T) {
	var b chunkBuffer
	b.mergePrefix(10)
	assert.True(t, b.empty())
}

func TestChunkBuffer_IndexDelimFindsMatchInHead(t *testing.T) {
	var b chunkBuffer
	b.append([]byte("hello\r\n"))
	b.mergePrefix(b.size)
	off := b.indexDelim([]byte("\r\n"))
	assert.Equal(t, len("hello\r\n"), off)
}

func TestChunkBuffer_IndexDelimMissingReturnsNegativeOne(t *testing.T) {
	var b chunkBuffer
	b.append([]byte("no delimiter here"))
	b.mergePrefix(b.size)
	assert.Equal(t, -1, b.indexDelim([]byte("\r\n")))
}

func TestChunkBuffer_TakeFrontRemovesExactPrefix(t *testing.T) {
	var b chunkBuffer
	b.append([]byte("abcdef"))
	got := b.takeFront(3)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, 3, b.size)
	assert.Equal(t, "def", string(b.chunks[0]))
}

func TestChunkBuffer_PopFrontOnEmptyReturnsNil(t *testing.T) {
	var b chunkBuffer
	assert.Nil(t, b.popFront())
}
