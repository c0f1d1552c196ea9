package export

import (
	"fmt"
	"html/template"

	"ghostwriter/api/internal/gitrepo"
)

// ContentSource loads a document revision for export.
type ContentSource interface {
	GetHeadContent(documentID string) (gitrepo.Content, gitrepo.CommitInfo, error)
	GetContentByHash(documentID, hash string) (gitrepo.Content, error)
}

// Service provides document export functionality
type Service struct {
	source ContentSource
}

// NewService creates a new export service
func NewService(source ContentSource) *Service {
	return &Service{source: source}
}

// Export generates an export in the requested format
func (s *Service) Export(req Request) (*Result, error) {
	content, info, err := s.loadContent(req)
	if err != nil {
		return nil, err
	}

	data := TemplateData{
		Title:       content.Title,
		ContentHTML: template.HTML(content.HTML),
		Author:      info.Author,
		UpdatedAt:   info.CreatedAt,
	}

	html, err := RenderDocumentHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, content.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func (s *Service) loadContent(req Request) (gitrepo.Content, gitrepo.CommitInfo, error) {
	if req.Version == "" || req.Version == "latest" {
		content, info, err := s.source.GetHeadContent(req.DocumentID)
		if err != nil {
			return gitrepo.Content{}, gitrepo.CommitInfo{}, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
		}
		return content, info, nil
	}

	content, err := s.source.GetContentByHash(req.DocumentID, req.Version)
	if err != nil {
		return gitrepo.Content{}, gitrepo.CommitInfo{}, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	return content, gitrepo.CommitInfo{Hash: req.Version}, nil
}
