package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrMemoNotFound  = errors.New("memo not found")
	ErrInvalidMemoID = errors.New("invalid memo id")
)

// CautionEmptyFirstLine is shown when a submitted memo has an empty first line.
const CautionEmptyFirstLine = "A memo with an empty first line cannot be saved."

type Memo struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FirstLine returns the content up to and including the first "\n".
// Content without a newline is returned whole.
func (m *Memo) FirstLine() string {
	return FirstLine(m.Content)
}

func FirstLine(content string) string {
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		return content[:i+1]
	}
	return content
}

// Title is the first line without its line terminator.
func Title(content string) string {
	return strings.TrimRight(FirstLine(content), "\r\n")
}

// FirstLineEmpty reports whether content is empty or starts with a line terminator.
func FirstLineEmpty(content string) bool {
	if content == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(content)
	switch r {
	case '\n', '\r', '\v', '\f', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

type MemoRequest struct {
	Content string `json:"memo" validate:"firstline"`
}

type MemoResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewMemoResponse(m *Memo) *MemoResponse {
	return &MemoResponse{
		ID:        m.ID,
		Title:     Title(m.Content),
		Content:   m.Content,
		UpdatedAt: m.UpdatedAt,
	}
}

// ValidationError carries a rejected submission back to the form that sent it.
type ValidationError struct {
	Caution string
	Content string
}

func (e *ValidationError) Error() string {
	return e.Caution
}
