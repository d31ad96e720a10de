package mail

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	htmlTemplate "html/template"
	"io/fs"
	"os"
	"time"

	textTemplate "text/template"

	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

//go:embed templates/*.html templates/*.txt
var defaultTemplates embed.FS

var ErrTemplateNotFound = errors.New("mail template not found")

// Client is the part of *mail.Client the service needs.
type Client interface {
	DialAndSend(messages ...*mail.Msg) error
}

type Service struct {
	config        *config.MailConfig
	client        Client
	htmlTemplates *htmlTemplate.Template
	textTemplates *textTemplate.Template
	logger        *logging.Service
}

func NewService(cfg *config.MailConfig, logger *logging.Service) (*Service, error) {
	logger.Info("initializing mail service",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption),
		zap.String("from_address", cfg.FromAddress))

	client, err := newSMTPClient(cfg)
	if err != nil {
		logger.Error("failed to create mail client",
			zap.Error(err),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port))
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewServiceWithClient(cfg, logger, client)
}

// NewServiceWithClient builds the service around an existing client.
func NewServiceWithClient(cfg *config.MailConfig, logger *logging.Service, client Client) (*Service, error) {
	if cfg.FromAddress == "" {
		return nil, errors.New("MAIL_FROM_ADDRESS is required")
	}

	service := &Service{
		config: cfg,
		client: client,
		logger: logger,
	}

	if err := service.loadTemplates(); err != nil {
		logger.Error("failed to load mail templates", zap.Error(err))
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}
	return service, nil
}

func newSMTPClient(cfg *config.MailConfig) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	switch cfg.Encryption {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	return mail.NewClient(cfg.Host, opts...)
}

// loadTemplates parses the embedded defaults, then lets files in TemplatesDir override them by name.
func (s *Service) loadTemplates() error {
	var err error
	s.htmlTemplates, err = htmlTemplate.ParseFS(defaultTemplates, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse HTML templates: %w", err)
	}
	s.textTemplates, err = textTemplate.ParseFS(defaultTemplates, "templates/*.txt")
	if err != nil {
		return fmt.Errorf("failed to parse text templates: %w", err)
	}

	if s.config.TemplatesDir == "" {
		return nil
	}

	dir := os.DirFS(s.config.TemplatesDir)
	if matches, _ := fs.Glob(dir, "*.html"); len(matches) > 0 {
		if s.htmlTemplates, err = s.htmlTemplates.ParseFS(dir, "*.html"); err != nil {
			return fmt.Errorf("failed to parse HTML templates: %w", err)
		}
	}
	if matches, _ := fs.Glob(dir, "*.txt"); len(matches) > 0 {
		if s.textTemplates, err = s.textTemplates.ParseFS(dir, "*.txt"); err != nil {
			return fmt.Errorf("failed to parse text templates: %w", err)
		}
	}

	s.logger.Info("mail templates loaded",
		zap.String("templates_dir", s.config.TemplatesDir),
		zap.Int("html_templates", len(s.htmlTemplates.Templates())),
		zap.Int("text_templates", len(s.textTemplates.Templates())))
	return nil
}

func (s *Service) newMessage() (*mail.Msg, error) {
	message := mail.NewMsg()

	var err error
	if s.config.FromName != "" {
		err = message.FromFormat(s.config.FromName, s.config.FromAddress)
	} else {
		err = message.From(s.config.FromAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}
	return message, nil
}

func (s *Service) send(message *mail.Msg) error {
	start := time.Now()
	if err := s.client.DialAndSend(message); err != nil {
		s.logger.Error("failed to send email",
			zap.Error(err),
			zap.Duration("attempt_duration", time.Since(start)))
		return err
	}

	s.logger.Info("email sent", zap.Duration("send_duration", time.Since(start)))
	return nil
}

// SendTemplate renders <name>.html and <name>.txt and sends them as one multipart message.
// At least one of the two must exist.
func (s *Service) SendTemplate(templateName string, to []string, subject string, data map[string]any) error {
	s.logger.Info("sending template email",
		zap.String("template", templateName),
		zap.Strings("recipients", to),
		zap.String("subject", subject))

	message, err := s.newMessage()
	if err != nil {
		return err
	}
	if err := message.To(to...); err != nil {
		return fmt.Errorf("failed to set TO addresses: %w", err)
	}
	message.Subject(subject)

	if err := s.render(templateName, data, message); err != nil {
		s.logger.Error("failed to render template", zap.Error(err), zap.String("template", templateName))
		return err
	}

	return s.send(message)
}

func (s *Service) render(templateName string, data map[string]any, message *mail.Msg) error {
	var hasHTML bool

	if t := s.htmlTemplates.Lookup(templateName + ".html"); t != nil {
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return fmt.Errorf("failed to execute HTML template: %w", err)
		}
		message.SetBodyString(mail.TypeTextHTML, buf.String())
		hasHTML = true
	}

	if t := s.textTemplates.Lookup(templateName + ".txt"); t != nil {
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return fmt.Errorf("failed to execute text template: %w", err)
		}
		if hasHTML {
			message.AddAlternativeString(mail.TypeTextPlain, buf.String())
		} else {
			message.SetBodyString(mail.TypeTextPlain, buf.String())
		}
		return nil
	}

	if !hasHTML {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, templateName)
	}
	return nil
}
