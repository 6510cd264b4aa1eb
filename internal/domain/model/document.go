package model

import (
	"strings"
	"time"

	"jobmatchly/internal/domain"

	"github.com/google/uuid"
)

type DocumentKind string

const (
	DocumentResume      DocumentKind = "resume"
	DocumentCoverLetter DocumentKind = "cover_letter"
)

// Document is a generated resume or cover letter stored as markdown.
type Document struct {
	ID        string
	UserID    string
	Kind      DocumentKind
	Title     string
	ContentMD string
	CreatedAt time.Time
}

func NewDocument(userID string, kind DocumentKind, title, content string) (*Document, error) {
	if userID == "" || strings.TrimSpace(content) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if kind != DocumentResume && kind != DocumentCoverLetter {
		return nil, domain.ErrInvalidArgument
	}
	if strings.TrimSpace(title) == "" {
		title = strings.ReplaceAll(string(kind), "_", " ")
	}
	return &Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Title:     strings.TrimSpace(title),
		ContentMD: content,
		CreatedAt: time.Now(),
	}, nil
}
