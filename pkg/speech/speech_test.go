package speech

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBinary(t *testing.T, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

const fakeWhisper = `audio="$1"; shift
while [ $# -gt 0 ]; do
  case "$1" in
    --output_dir) out="$2"; shift ;;
    --model) model="$2"; shift ;;
    --output_format) [ "$2" = "json" ] || exit 3; shift ;;
  esac
  shift
done
stem=$(basename "$audio"); stem="${stem%.*}"
printf '{"text":" I have fever and cough (%s). ","language":"en","segments":[]}' "$model" > "$out/$stem.json"
`

func writeAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}

func TestWhisperTranscribe(t *testing.T) {
	w := NewWhisper(WhisperConfig{Binary: fakeBinary(t, "whisper", fakeWhisper), Model: "tiny", Logger: nop()})

	text, err := w.Transcribe(context.Background(), writeAudio(t, "question.recording.wav"))
	require.NoError(t, err)
	assert.Equal(t, "I have fever and cough (tiny).", text)
}

func TestWhisperTranscribe_Errors(t *testing.T) {
	w := NewWhisper(WhisperConfig{Binary: fakeBinary(t, "whisper", fakeWhisper), Logger: nop()})
	ctx := context.Background()

	_, err := w.Transcribe(ctx, writeAudio(t, "notes.txt"))
	assert.ErrorIs(t, err, ErrUnsupportedAudio)

	_, err = w.Transcribe(ctx, filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, ErrAudioNotFound)

	noText := NewWhisper(WhisperConfig{
		Binary: fakeBinary(t, "whisper", `audio="$1"; while [ $# -gt 0 ]; do [ "$1" = "--output_dir" ] && out="$2"; shift; done
stem=$(basename "$audio"); echo '{"segments":[]}' > "$out/${stem%.*}.json"
`),
		Logger: nop(),
	})
	_, err = noText.Transcribe(ctx, writeAudio(t, "q.wav"))
	assert.ErrorIs(t, err, ErrNoTranscript)

	failing := NewWhisper(WhisperConfig{Binary: fakeBinary(t, "whisper", "echo 'ffmpeg not found' >&2; exit 1\n"), Logger: nop()})
	_, err = failing.Transcribe(ctx, writeAudio(t, "q.wav"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg not found")
}

const fakeEspeak = `while [ $# -gt 0 ]; do
  case "$1" in
    -w) out="$2"; shift ;;
    -v) voice="$2"; shift ;;
  esac
  shift
done
{ printf '%s:' "$voice"; cat; } > "$out"
`

func TestEspeakSynthesize(t *testing.T) {
	e := NewEspeak(EspeakConfig{Binary: fakeBinary(t, "espeak-ng", fakeEspeak), Voice: "hi", Logger: nop()})
	out := filepath.Join(t.TempDir(), "output", "answer.wav")

	require.NoError(t, e.Synthesize(context.Background(), "-Stay hydrated.", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hi:-Stay hydrated.", string(data))
}

func TestEspeakSynthesize_EmptyText(t *testing.T) {
	e := NewEspeak(EspeakConfig{Binary: "unused", Logger: nop()})
	err := e.Synthesize(context.Background(), "  \n", filepath.Join(t.TempDir(), "a.wav"))
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestEspeakSynthesize_Timeout(t *testing.T) {
	e := NewEspeak(EspeakConfig{
		Binary:  fakeBinary(t, "espeak-ng", "exec sleep 5\n"),
		Timeout: 50 * time.Millisecond,
		Logger:  nop(),
	})
	err := e.Synthesize(context.Background(), "hello", filepath.Join(t.TempDir(), "a.wav"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
