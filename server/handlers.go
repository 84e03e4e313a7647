package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/history"
	"github.com/xhad/medilex/pkg/ocr"
	"github.com/xhad/medilex/pkg/pipeline"
	"github.com/xhad/medilex/pkg/rag"
	"github.com/xhad/medilex/pkg/speech"
)

type analyzeRequest struct {
	Text      string `json:"text"`
	Translate bool   `json:"translate"`
	Speak     bool   `json:"speak"`
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type queryResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Warning string   `json:"warning,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	var in pipeline.Input
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		parsed, cleanup, err := s.multipartInput(r)
		defer cleanup()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in = parsed
	} else {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		in = pipeline.Input{Source: models.SourceText, Text: req.Text, Translate: req.Translate, Speak: req.Speak}
	}

	a, err := s.deps.Analyzer.Analyze(r.Context(), in)
	if err != nil {
		s.writeAnalyzeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) writeAnalyzeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNoInput):
		writeError(w, http.StatusBadRequest, "Please provide input")
	case errors.Is(err, pipeline.ErrInvalidSource),
		errors.Is(err, ocr.ErrUnsupportedFormat),
		errors.Is(err, speech.ErrUnsupportedAudio):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrStageUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error().Err(err).Msg("analysis failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// multipartInput saves an uploaded image or audio part to a temp file. The
// returned cleanup removes it and is always safe to call.
func (s *Server) multipartInput(r *http.Request) (pipeline.Input, func(), error) {
	cleanup := func() {}
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		return pipeline.Input{}, cleanup, fmt.Errorf("invalid multipart body: %w", err)
	}
	removeForm := func() { _ = r.MultipartForm.RemoveAll() }
	cleanup = removeForm

	in := pipeline.Input{
		Text:      r.FormValue("text"),
		Translate: formBool(r, "translate"),
		Speak:     formBool(r, "speak"),
	}

	for _, part := range []struct {
		field  string
		source models.InputSource
		ok     func(string) bool
		err    error
	}{
		{"image", models.SourceImage, ocr.SupportedFormat, ocr.ErrUnsupportedFormat},
		{"audio", models.SourceAudio, speech.SupportedAudio, speech.ErrUnsupportedAudio},
	} {
		file, header, err := r.FormFile(part.field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return in, cleanup, err
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !part.ok(ext) {
			return in, cleanup, fmt.Errorf("%w: %s", part.err, header.Filename)
		}
		path, err := saveUpload(file, ext)
		if err != nil {
			return in, cleanup, err
		}
		cleanup = func() {
			os.Remove(path)
			removeForm()
		}

		in.Source = part.source
		if part.source == models.SourceImage {
			in.ImagePath = path
		} else {
			in.AudioPath = path
		}
		return in, cleanup, nil
	}

	in.Source = models.SourceText
	return in, cleanup, nil
}

func saveUpload(file multipart.File, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "medilex-upload-*"+ext)
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, file); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("saving upload: %w", err)
	}
	return tmp.Name(), nil
}

func formBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.FormValue(key))
	return b
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ans, err := s.deps.Answerer.AnswerTopK(r.Context(), req.Question, req.TopK)
	if errors.Is(err, rag.ErrEmptyQuestion) {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("query failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Answer: ans.Text, Sources: ans.Sources, Warning: ans.Warning})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := s.deps.History.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*models.Analysis{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	a, err := s.deps.History.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}
