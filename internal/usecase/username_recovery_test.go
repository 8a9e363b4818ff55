package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
)

func newRecoveryService(users ...*domain.User) (*UsernameRecoveryService, *userRepoStub, *mailerStub, *eventsStub) {
	repo := newUserRepoStub(users...)
	mailer := &mailerStub{}
	events := &eventsStub{}

	svc := NewUsernameRecoveryService(testConfig(), repo, mailer, zap.NewNop())
	svc.WithClock(func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) })
	svc.WithEventPublisher(events)
	return svc, repo, mailer, events
}

func TestUsernameRecoveryService_SendsReminder(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	svc, _, mailer, events := newRecoveryService(user)

	res, err := svc.RequestUsernameRecovery(context.Background(), UsernameRecoveryRequest{Email: "Casey@Example.COM"})
	if err != nil {
		t.Fatalf("RequestUsernameRecovery returned error: %v", err)
	}
	if !res.Sent {
		t.Fatalf("expected reminder to be sent, reason=%s", res.Reason)
	}
	if res.MaskedDestination == "" || strings.Contains(res.MaskedDestination, "casey@example.com") {
		t.Fatalf("expected masked destination, got %q", res.MaskedDestination)
	}

	if len(mailer.reminders) != 1 {
		t.Fatalf("expected one reminder, got %d", len(mailer.reminders))
	}
	reminder := mailer.reminders[0]
	if reminder.To != "casey@example.com" || reminder.Username != "casey" {
		t.Fatalf("unexpected reminder payload: %+v", reminder)
	}

	if len(events.usernameRecovered) != 1 {
		t.Fatalf("expected one recovery event, got %d", len(events.usernameRecovered))
	}
	event := events.usernameRecovered[0]
	if event.UserID != "user-1" || !event.DeliverySucceeded {
		t.Fatalf("unexpected event payload: %+v", event)
	}
}

func TestUsernameRecoveryService_DisabledFeature(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	svc, _, mailer, _ := newRecoveryService(user)
	svc.cfg.Recovery.UsernameRecoveryEnabled = false

	_, err := svc.RequestUsernameRecovery(context.Background(), UsernameRecoveryRequest{Email: "casey@example.com"})
	if !errors.Is(err, ErrUsernameRecoveryDisabled) {
		t.Fatalf("expected ErrUsernameRecoveryDisabled, got %v", err)
	}
	if len(mailer.reminders) != 0 {
		t.Fatalf("disabled feature must not send mail")
	}
}

func TestUsernameRecoveryService_InvalidEmail(t *testing.T) {
	svc, _, _, _ := newRecoveryService()

	if _, err := svc.RequestUsernameRecovery(context.Background(), UsernameRecoveryRequest{Email: "not-an-email"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestUsernameRecoveryService_UnknownEmailStaysQuiet(t *testing.T) {
	svc, _, mailer, events := newRecoveryService()

	res, err := svc.RequestUsernameRecovery(context.Background(), UsernameRecoveryRequest{Email: "ghost@example.com"})
	if err != nil {
		t.Fatalf("unknown addresses must not surface an error, got %v", err)
	}
	if res.Sent {
		t.Fatalf("nothing can be sent for an unknown address")
	}
	if res.Reason != "unknown_email" {
		t.Fatalf("expected reason unknown_email, got %s", res.Reason)
	}
	if res.MaskedDestination == "" {
		t.Fatalf("result must still carry the masked destination for the generic reply")
	}
	if len(mailer.reminders) != 0 || len(events.usernameRecovered) != 0 {
		t.Fatalf("unknown addresses produce no mail and no event")
	}
}

func TestUsernameRecoveryService_DisabledAccountStaysQuiet(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	user.Status = domain.UserStatusDisabled
	svc, _, mailer, _ := newRecoveryService(user)

	res, err := svc.RequestUsernameRecovery(context.Background(), UsernameRecoveryRequest{Email: "casey@example.com"})
	if err != nil {
		t.Fatalf("disabled accounts must not surface an error, got %v", err)
	}
	if res.Sent || res.Reason != "account_disabled" {
		t.Fatalf("expected quiet account_disabled result, got %+v", res)
	}
	if len(mailer.reminders) != 0 {
		t.Fatalf("disabled accounts get no reminder")
	}
}

func TestUsernameRecoveryService_MissingUsernameStaysQuiet(t *testing.T) {
	user := activeUser("user-1", "", "casey@example.com", "hash")
	svc, _, mailer, _ := newRecoveryService(user)

	res, err := svc.RequestUsernameRecovery(context.Background(), UsernameRecoveryRequest{Email: "casey@example.com"})
	if err != nil {
		t.Fatalf("accounts without a username must not surface an error, got %v", err)
	}
	if res.Sent || res.Reason != "no_username" {
		t.Fatalf("expected quiet no_username result, got %+v", res)
	}
	if len(mailer.reminders) != 0 {
		t.Fatalf("nothing to remind without a username")
	}
}

func TestUsernameRecoveryService_DeliveryFailureStaysQuiet(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	svc, _, mailer, events := newRecoveryService(user)
	mailer.reminderErr = errors.New("smtp down")

	res, err := svc.RequestUsernameRecovery(context.Background(), UsernameRecoveryRequest{Email: "casey@example.com"})
	if err != nil {
		t.Fatalf("delivery failures must not surface an error, got %v", err)
	}
	if res.Sent || res.Reason != "delivery_failed" {
		t.Fatalf("expected quiet delivery_failed result, got %+v", res)
	}
	if len(events.usernameRecovered) != 0 {
		t.Fatalf("a failed delivery publishes no event")
	}
}

func TestUsernameRecoveryService_RateLimited(t *testing.T) {
	user := activeUser("user-1", "casey", "casey@example.com", "hash")
	svc, _, _, _ := newRecoveryService(user)
	svc.WithRateLimiter(newRateLimitStub())

	for i := 0; i < 2; i++ {
		if _, err := svc.RequestUsernameRecovery(context.Background(), UsernameRecoveryRequest{Email: "casey@example.com"}); err != nil {
			t.Fatalf("request %d returned error: %v", i+1, err)
		}
	}

	_, err := svc.RequestUsernameRecovery(context.Background(), UsernameRecoveryRequest{Email: "casey@example.com"})
	var rateErr *RateLimitExceededError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitExceededError, got %v", err)
	}
	if rateErr.Scope != "username_recovery" {
		t.Fatalf("expected scope username_recovery, got %s", rateErr.Scope)
	}
}
