package models

import "time"

type InputSource string

const (
	SourceImage InputSource = "image"
	SourceText  InputSource = "text"
	SourceAudio InputSource = "audio"
)

func (s InputSource) Valid() bool {
	switch s {
	case SourceImage, SourceText, SourceAudio:
		return true
	}
	return false
}

// Analysis is the full result of one run through the pipeline.
type Analysis struct {
	ID              string      `json:"id"`
	Source          InputSource `json:"source"`
	InputText       string      `json:"input_text"`
	Entities        Entities    `json:"entities"`
	Query           string      `json:"query"`
	Answer          string      `json:"answer"`
	CareTips        string      `json:"care_tips"`
	FinalAnswer     string      `json:"final_answer"`
	Translation     string      `json:"translation,omitempty"`
	TranslationLang string      `json:"translation_lang,omitempty"`
	AudioPath       string      `json:"audio_path,omitempty"`
	Sources         []string    `json:"sources"`
	Warnings        []string    `json:"warnings,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}
