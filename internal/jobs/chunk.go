package jobs

import "strings"

// Chunking defaults: a sliding word window with overlap so passage
// boundaries do not cut answers in half.
const (
	chunkWords   = 200
	overlapWords = 40
)

// ChunkText splits text into word-window chunks of roughly chunkWords words
// with overlapWords words shared between neighbours. Whitespace runs are
// collapsed. Empty input yields no chunks.
func ChunkText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	if len(words) <= chunkWords {
		return []string{strings.Join(words, " ")}
	}

	step := chunkWords - overlapWords
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + chunkWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
