package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Event describes one deletion-lifecycle notification. Delivery is
// best-effort: failures are logged and never propagated to the caller.
type Event struct {
	TargetName  string
	TargetEmail string
	AdminEmail  string
	AdminName   string
	Reason      string
	Status      string
	ConfirmLink string
	CancelLink  string
}

type Service struct {
	Mailer Mailer
	From   string
}

func New(mailer Mailer, from string) *Service {
	return &Service{Mailer: mailer, From: from}
}

func (s *Service) Notify(ctx context.Context, event Event) {
	if s == nil || s.Mailer == nil {
		return
	}
	if strings.TrimSpace(event.AdminEmail) == "" {
		return
	}
	subject, body := Compose(event)
	if err := s.Mailer.Send(ctx, s.From, event.AdminEmail, subject, body); err != nil {
		slog.Warn("deletion notification send failed", "status", event.Status, "err", err)
	}
}

func Compose(event Event) (string, string) {
	var subject string
	lines := []string{
		fmt.Sprintf("Account: %s <%s>", event.TargetName, event.TargetEmail),
		fmt.Sprintf("Requested by: %s <%s>", event.AdminName, event.AdminEmail),
		fmt.Sprintf("Reason: %s", event.Reason),
	}

	switch event.Status {
	case "pending":
		subject = "Account deletion requested: " + event.TargetEmail
		lines = append(lines,
			"",
			"Confirm: "+event.ConfirmLink,
			"Cancel: "+event.CancelLink,
		)
	case "confirmed":
		subject = "Account deletion confirmed: " + event.TargetEmail
		lines = append(lines, "", "Cancel before execution: "+event.CancelLink)
	case "cancelled":
		subject = "Account deletion cancelled: " + event.TargetEmail
	case "completed":
		subject = "Account deletion completed: " + event.TargetEmail
	default:
		subject = "Account deletion update: " + event.TargetEmail
	}

	return subject, strings.Join(lines, "\n")
}
