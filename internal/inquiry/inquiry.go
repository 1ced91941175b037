// Package inquiry validates contact form submissions and forwards them by
// email.
package inquiry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/wneessen/go-mail"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/metrics"
)

// Inquiry is a contact request from the storefront. It is never stored.
type Inquiry struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Message string  `json:"message"`
	Subject *string `json:"subject,omitempty"`
}

// DeliveryError reports that the relay did not accept the message.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return "inquiry: delivery failed: " + e.Err.Error() }
func (e *DeliveryError) Unwrap() error { return e.Err }

// Relay hands a message to a mail server.
type Relay interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// Service validates inquiries and sends them to the shop mailbox.
type Service struct {
	relay    Relay
	from     string
	to       string
	validate *validator.Validate
}

// NewService creates a Service sending from one address to another.
func NewService(relay Relay, from, to string) (*Service, error) {
	if relay == nil {
		return nil, errors.New("inquiry: relay is required")
	}
	if from == "" || to == "" {
		return nil, errors.New("inquiry: from and to addresses are required")
	}
	return &Service{relay: relay, from: from, to: to, validate: validator.New()}, nil
}

// Submit validates in and sends it synchronously. There is exactly one
// delivery attempt.
func (s *Service) Submit(ctx context.Context, in Inquiry) error {
	in = trimmed(in)
	if missing := missingFields(in); len(missing) > 0 {
		metrics.ObserveInquiry("invalid")
		return domain.NewValidationError("missing required fields: "+strings.Join(missing, ", "), missing...)
	}
	if err := s.validate.Var(in.Email, "email"); err != nil {
		metrics.ObserveInquiry("invalid")
		return domain.NewValidationError("invalid email address", "email")
	}

	msg, err := s.compose(in)
	if err != nil {
		metrics.ObserveInquiry("failed")
		return err
	}
	if err := s.relay.Send(ctx, msg); err != nil {
		metrics.ObserveInquiry("failed")
		return &DeliveryError{Err: err}
	}
	metrics.ObserveInquiry("sent")
	return nil
}

func (s *Service) compose(in Inquiry) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("inquiry: invalid sender address: %w", err)
	}
	if err := msg.To(s.to); err != nil {
		return nil, fmt.Errorf("inquiry: invalid recipient address: %w", err)
	}
	if err := msg.ReplyTo(in.Email); err != nil {
		return nil, domain.NewValidationError("invalid email address", "email")
	}
	msg.Subject(subjectLine(in))
	msg.SetBodyString(mail.TypeTextPlain, composeBody(in))
	return msg, nil
}

func trimmed(in Inquiry) Inquiry {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Message = strings.TrimSpace(in.Message)
	if in.Subject != nil {
		s := strings.TrimSpace(*in.Subject)
		if s == "" {
			in.Subject = nil
		} else {
			in.Subject = &s
		}
	}
	return in
}

// missingFields lists empty required fields in a fixed order.
func missingFields(in Inquiry) []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", in.Name},
		{"email", in.Email},
		{"phone", in.Phone},
		{"message", in.Message},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func subjectLine(in Inquiry) string {
	if in.Subject != nil {
		return "New inquiry: " + *in.Subject
	}
	return "New inquiry from " + in.Name
}

func composeBody(in Inquiry) string {
	subject := "(none)"
	if in.Subject != nil {
		subject = *in.Subject
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", in.Name)
	fmt.Fprintf(&b, "Email: %s\n", in.Email)
	fmt.Fprintf(&b, "Phone: %s\n", in.Phone)
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	b.WriteString("\n")
	b.WriteString(in.Message)
	b.WriteString("\n")
	return b.String()
}
