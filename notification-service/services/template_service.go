package services

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	TemplateVerification    = "verification"
	TemplatePasswordReset   = "password_reset"
	TemplatePasswordChanged = "password_changed"
)

// TemplateService renders the embedded email templates. Parsed templates are
// cached after first use.
type TemplateService struct {
	templateCache map[string]*template.Template
	templateMutex sync.RWMutex
}

// NewTemplateService creates a new template service
func NewTemplateService() *TemplateService {
	return &TemplateService{
		templateCache: make(map[string]*template.Template),
	}
}

// RenderTemplate renders an email template with provided data
func (ts *TemplateService) RenderTemplate(templateID string, data any) (string, error) {
	tmpl, err := ts.lookup(templateID)
	if err != nil {
		return "", err
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateID, err)
	}
	return rendered.String(), nil
}

func (ts *TemplateService) lookup(templateID string) (*template.Template, error) {
	ts.templateMutex.RLock()
	tmpl, exists := ts.templateCache[templateID]
	ts.templateMutex.RUnlock()
	if exists {
		return tmpl, nil
	}

	tmpl, err := template.ParseFS(templateFS, "templates/"+templateID+".html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", templateID, err)
	}

	ts.templateMutex.Lock()
	ts.templateCache[templateID] = tmpl
	ts.templateMutex.Unlock()
	return tmpl, nil
}
