package email

import (
	"fmt"
	"net/smtp"

	"github.com/example/hotel-distribution/internal/domain/channel"
	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	auth smtp.Auth
}

// NewService creates a new email service. user may be empty for relays that
// accept unauthenticated mail.
func NewService(host, port, from, user, pass string) *Service {
	s := &Service{
		host: host,
		port: port,
		from: from,
	}
	if user != "" {
		s.auth = smtp.PlainAuth("", user, pass, host)
	}
	return s
}

// SendExclusivityAlert notifies operations about detected mode violations.
func (s *Service) SendExclusivityAlert(to string, report *channel.AuditReport) error {
	subject := fmt.Sprintf("[ARI] %d distribution mode violation(s) for hotel %s",
		len(report.Violations), report.HotelID)
	body := BuildExclusivityAlertBody(report)
	return s.send(to, subject, body)
}

// SendDeadLetterAlert notifies operations about events stuck in ERROR.
func (s *Service) SendDeadLetterAlert(to, hotelID string, events []store.ARIEvent) error {
	subject := fmt.Sprintf("[ARI] %d dead-lettered event(s) for hotel %s", len(events), hotelID)
	body := BuildDeadLetterAlertBody(hotelID, events)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, s.auth, s.from, []string{to}, []byte(msg))
}
