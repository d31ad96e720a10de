package testutils

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockMailService struct {
	mock.Mock
}

func (m *MockMailService) SendTemplate(templateName string, to []string, subject string, data map[string]any) error {
	args := m.Called(templateName, to, subject, data)
	return args.Error(0)
}

type SentMail struct {
	Template string
	To       []string
	Subject  string
	Data     map[string]any
}

// RecordingMailer captures every message and fails when Err is set.
type RecordingMailer struct {
	mu   sync.Mutex
	Err  error
	Sent []SentMail
}

func (r *RecordingMailer) SendTemplate(templateName string, to []string, subject string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, SentMail{Template: templateName, To: to, Subject: subject, Data: data})
	return nil
}

func (r *RecordingMailer) Last() (SentMail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Sent) == 0 {
		return SentMail{}, false
	}
	return r.Sent[len(r.Sent)-1], true
}
