package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/zap"
)

//go:embed pages/*.html
var defaultPages embed.FS

type Service struct {
	config    *config.TemplatesConfig
	appName   string
	logger    *logging.Service
	mu        sync.RWMutex
	templates *template.Template
}

func New(cfg *config.TemplatesConfig, appName string, logger *logging.Service) *Service {
	ext := cfg.Extension
	if ext == "" {
		ext = ".html"
	}
	tc := *cfg
	tc.Extension = ext

	return &Service{
		config:  &tc,
		appName: appName,
		logger:  logger,
	}
}

// LoadTemplates parses the embedded pages, then any pages in Dir, which replace embedded ones by name.
func (s *Service) LoadTemplates() error {
	tmpl, err := s.parse()
	if err != nil {
		s.logger.Error("failed to load page templates", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.templates = tmpl
	s.mu.Unlock()

	s.logger.Info("page templates loaded", zap.Int("templates", len(tmpl.Templates())))
	return nil
}

func (s *Service) parse() (*template.Template, error) {
	tmpl, err := template.ParseFS(defaultPages, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded pages: %w", err)
	}

	if s.config.Dir == "" {
		return tmpl, nil
	}

	dir := os.DirFS(s.config.Dir)
	pattern := "*" + s.config.Extension
	matches, err := fs.Glob(dir, pattern)
	if err != nil || len(matches) == 0 {
		return tmpl, nil
	}
	if tmpl, err = tmpl.ParseFS(dir, pattern); err != nil {
		return nil, fmt.Errorf("failed to parse pages in %s: %w", s.config.Dir, err)
	}
	return tmpl, nil
}

func (s *Service) Renderer() *Renderer {
	return &Renderer{service: s}
}

// Renderer implements echo.Renderer.
type Renderer struct {
	service *Service
}

func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	s := r.service

	tmpl, err := s.current()
	if err != nil {
		return err
	}

	if !strings.HasSuffix(name, s.config.Extension) && !strings.HasSuffix(name, ".html") {
		name += s.config.Extension
	}

	if m, ok := data.(map[string]any); ok {
		if _, set := m["AppName"]; !set {
			m["AppName"] = s.appName
		}
	}

	return tmpl.ExecuteTemplate(w, name, data)
}

func (s *Service) current() (*template.Template, error) {
	if s.config.Development {
		return s.parse()
	}

	s.mu.RLock()
	tmpl := s.templates
	s.mu.RUnlock()
	if tmpl == nil {
		return nil, fmt.Errorf("page templates not loaded")
	}
	return tmpl, nil
}
