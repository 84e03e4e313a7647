// Package translate renders explanations in the patient's language.
package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/types"
	"github.com/xhad/medilex/pkg/cache"
	"github.com/xhad/medilex/pkg/logging"
	"github.com/xhad/medilex/pkg/metrics"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

// Languages maps ISO 639-1 codes to display names.
var Languages = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"bn": "Bengali",
	"ta": "Tamil",
	"te": "Telugu",
	"mr": "Marathi",
	"gu": "Gujarati",
	"kn": "Kannada",
	"ml": "Malayalam",
	"pa": "Punjabi",
	"ur": "Urdu",
	"es": "Spanish",
	"fr": "French",
}

// LanguageName returns the display name for code.
func LanguageName(code string) (string, error) {
	name, ok := Languages[strings.ToLower(code)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return name, nil
}

// Codes returns the supported codes, sorted.
func Codes() []string {
	codes := make([]string, 0, len(Languages))
	for c := range Languages {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

type Config struct {
	Cache    cache.Cache // optional
	CacheTTL time.Duration
	Logger   *zerolog.Logger
}

// LLMTranslator translates by prompting a Generator.
type LLMTranslator struct {
	gen    types.Generator
	config Config
	logger zerolog.Logger
}

func NewLLMTranslator(gen types.Generator, config Config) *LLMTranslator {
	if config.CacheTTL == 0 {
		config.CacheTTL = 24 * time.Hour
	}
	return &LLMTranslator{
		gen:    gen,
		config: config,
		logger: logging.Or(config.Logger, "translate"),
	}
}

func (t *LLMTranslator) Translate(ctx context.Context, text, src, dst string) (string, error) {
	srcName, err := LanguageName(src)
	if err != nil {
		return "", err
	}
	dstName, err := LanguageName(dst)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if strings.EqualFold(src, dst) {
		return text, nil
	}

	key := cacheKey(text, src, dst)
	if t.config.Cache != nil {
		if v, ok := t.config.Cache.Get(ctx, key); ok {
			metrics.RecordCacheLookup(true)
			return string(v), nil
		}
		metrics.RecordCacheLookup(false)
	}

	system := fmt.Sprintf("You are a professional medical translator. Translate the user's text from %s to %s. "+
		"Keep medicine names, doses and numbers unchanged. Reply with the translation only.", srcName, dstName)

	out, err := t.gen.Generate(ctx, system, text)
	if err != nil {
		return "", fmt.Errorf("translate %s->%s: %w", src, dst, err)
	}
	out = cleanTranslation(out)
	if out == "" {
		return "", fmt.Errorf("translate %s->%s: empty translation", src, dst)
	}

	if t.config.Cache != nil {
		t.config.Cache.Set(ctx, key, []byte(out), t.config.CacheTTL)
	}
	t.logger.Debug().Str("src", src).Str("dst", dst).Int("chars", len(text)).Msg("translated")
	return out, nil
}

func cacheKey(text, src, dst string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(src) + ">" + strings.ToLower(dst) + "\x00" + text))
	return "tr:" + hex.EncodeToString(sum[:])
}

// cleanTranslation strips the preambles and quoting models tend to add.
func cleanTranslation(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"Translation:", "Here is the translation:", "Here's the translation:"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' && !strings.Contains(s[1:len(s)-1], `"`) {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
