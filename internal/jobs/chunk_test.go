package jobs

import (
	"strconv"
	"strings"
	"testing"
)

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText(""); chunks != nil {
		t.Errorf("Expected no chunks for empty input, got %d", len(chunks))
	}
	if chunks := ChunkText("   \n\t  "); chunks != nil {
		t.Errorf("Expected no chunks for whitespace input, got %d", len(chunks))
	}
}

func TestChunkTextShort(t *testing.T) {
	chunks := ChunkText("a short  document\nwith few words")
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	// Whitespace runs collapse to single spaces
	if chunks[0] != "a short document with few words" {
		t.Errorf("Unexpected chunk content: %q", chunks[0])
	}
}

func TestChunkTextSlidingWindow(t *testing.T) {
	words := make([]string, 500)
	for i := range words {
		words[i] = "w"
	}
	chunks := ChunkText(strings.Join(words, " "))

	// 500 words, window 200, step 160: chunks start at 0, 160, 320
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if n := len(strings.Fields(chunks[0])); n != 200 {
		t.Errorf("Expected first chunk to hold 200 words, got %d", n)
	}
	if n := len(strings.Fields(chunks[2])); n != 180 {
		t.Errorf("Expected last chunk to hold the 180 remaining words, got %d", n)
	}
}

func TestChunkTextOverlap(t *testing.T) {
	words := make([]string, 250)
	for i := range words {
		words[i] = "w" + strconv.Itoa(i)
	}
	chunks := ChunkText(strings.Join(words, " "))
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}

	// The last overlapWords words of a chunk open the next one
	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	for i := 0; i < overlapWords; i++ {
		if first[len(first)-overlapWords+i] != second[i] {
			t.Fatalf("Expected chunks to overlap at word %d", i)
		}
	}
}
