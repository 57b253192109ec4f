package chat

import "time"

// Config controls prompt assembly, history and chunking.
type Config struct {
	// Prompt is the domain-expert instruction block.
	Prompt            string
	MaxHistoryTurns   int
	MaxHistoryTokens  int
	WordsPerChunk     int
	// GenerationTimeout bounds the generator call, streaming included.
	GenerationTimeout time.Duration
	ArchiveEnabled    bool
}

const (
	defaultMaxHistoryTurns = 6
	defaultWordsPerChunk   = 5
	DefaultPrompt          = `You are an oceanographic research assistant. Answer using the ocean data provided below.
Quote values with units and name the region they describe.
Domains marked FALLBACK hold representative sample values, not live observations: say so and hedge any conclusion drawn from them.
If no data was fetched, answer from general knowledge and say that no measurements were consulted.`
)

func (c Config) withDefaults() Config {
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.MaxHistoryTurns <= 0 {
		c.MaxHistoryTurns = defaultMaxHistoryTurns
	}
	if c.WordsPerChunk <= 0 {
		c.WordsPerChunk = defaultWordsPerChunk
	}
	return c
}
