package processor

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xhad/medilex/internal/models"
)

const (
	StrategyRecursive = "recursive"
	StrategySentence  = "sentence"
)

type ProcessorConfig struct {
	Strategy        string
	ChunkSize       int
	ChunkOverlap    int
	MinChunkLength  int
	RemoveStopwords bool
	CustomStopwords []string
	Lowercase       bool
}

type Processor struct {
	config   ProcessorConfig
	splitter textsplitter.TextSplitter
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.Strategy == "" {
		config.Strategy = StrategyRecursive
	}
	if config.ChunkSize == 0 {
		config.ChunkSize = 500
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 50
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 20
	}

	p := Processor{config: config}
	if config.Strategy == StrategyRecursive {
		p.splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
		)
	}
	return p
}

func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	var processed []models.ProcessedDocument

	for _, doc := range docs {
		chunks, err := p.Chunk(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk %s: %w", doc.Source(), err)
		}
		if len(chunks) == 0 {
			continue
		}

		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   chunks,
		})
	}

	return processed, nil
}

// Chunk splits a single text according to the configured strategy.
func (p *Processor) Chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if p.splitter != nil {
		raw, err := p.splitter.SplitText(p.prepare(text, true))
		if err != nil {
			return nil, err
		}
		chunks := raw[:0]
		for _, c := range raw {
			if c = strings.TrimSpace(c); c != "" {
				chunks = append(chunks, c)
			}
		}
		return chunks, nil
	}

	return p.splitIntoChunks(p.prepare(text, false)), nil
}

// prepare applies lowercasing and stopword removal. The recursive splitter needs
// paragraph breaks intact, so whitespace is only collapsed for the sentence strategy.
func (p *Processor) prepare(text string, keepLines bool) string {
	if p.config.Lowercase {
		text = strings.ToLower(text)
	}

	if !keepLines {
		text = strings.Join(strings.Fields(text), " ")
	}

	if p.config.RemoveStopwords {
		text = p.removeStopwords(text)
	}

	return strings.TrimSpace(text)
}

func (p *Processor) splitIntoChunks(text string) []string {
	var chunks []string

	// Split by sentences first
	sentences := p.splitIntoSentences(text)

	currentChunk := strings.Builder{}

	for _, sentence := range sentences {
		// If adding this sentence would exceed chunk size
		if currentChunk.Len()+len(sentence) > p.config.ChunkSize {
			// Save current chunk if it meets minimum length
			if currentChunk.Len() >= p.config.MinChunkLength {
				chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
			}

			// Start new chunk with overlap
			if p.config.ChunkOverlap > 0 && currentChunk.Len() > p.config.ChunkOverlap {
				lastPart := tail(currentChunk.String(), p.config.ChunkOverlap)
				currentChunk.Reset()
				currentChunk.WriteString(lastPart)
			} else {
				currentChunk.Reset()
			}
		}

		currentChunk.WriteString(sentence)
		currentChunk.WriteString(" ")
	}

	// Add the last chunk if it meets minimum length
	if currentChunk.Len() >= p.config.MinChunkLength {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

// tail returns the last n bytes of s, moved forward to a rune boundary.
func tail(s string, n int) string {
	start := len(s) - n
	for start < len(s) && start > 0 && !isRuneStart(s[start]) {
		start++
	}
	return s[start:]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func (p *Processor) splitIntoSentences(text string) []string {
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
	var sentences []string

	current := strings.Builder{}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		for _, ender := range sentenceEnders {
			if strings.HasSuffix(current.String(), ender) {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
				break
			}
		}
	}

	// Add any remaining text
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	return sentences
}

func (p *Processor) removeStopwords(text string) string {
	stopwords := make(map[string]struct{})
	for _, w := range getStopwords() {
		stopwords[w] = struct{}{}
	}
	for _, w := range p.config.CustomStopwords {
		stopwords[strings.ToLower(w)] = struct{}{}
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		var filtered []string
		for _, word := range strings.Fields(line) {
			if _, stop := stopwords[strings.ToLower(word)]; !stop {
				filtered = append(filtered, word)
			}
		}
		lines[i] = strings.Join(filtered, " ")
	}

	return strings.Join(lines, "\n")
}

// Common English stopwords
func getStopwords() []string {
	return []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with",
	}
}
