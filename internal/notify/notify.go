// Package notify tells the team about newly submitted feedback.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/straywatch/straywatch-api/internal/logging"
	"github.com/straywatch/straywatch-api/internal/models"
)

// DefaultAsyncTimeout bounds one background delivery when none is set.
const DefaultAsyncTimeout = 10 * time.Second

// Notifier delivers a feedback notification. Delivery is best-effort: callers
// log the error and carry on.
type Notifier interface {
	FeedbackReceived(ctx context.Context, fb models.Feedback) error
}

// Noop drops every notification. Used when no mail provider is configured.
type Noop struct{}

func (Noop) FeedbackReceived(context.Context, models.Feedback) error { return nil }

// SendGridNotifier mails feedback to the team inbox.
type SendGridNotifier struct {
	client *sendgrid.Client
	from   string
	to     string
}

// NewSendGridNotifier creates a notifier sending from one address to another.
func NewSendGridNotifier(apiKey, from, to string) *SendGridNotifier {
	return &SendGridNotifier{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
		to:     to,
	}
}

func (s *SendGridNotifier) FeedbackReceived(ctx context.Context, fb models.Feedback) error {
	message := feedbackMessage(s.from, s.to, fb)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send feedback email: %w", err)
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
}

// Async delivers notifications from a background goroutine so the caller
// never waits on the mail provider. Each delivery has its own timeout and
// outlives the request that triggered it. Failures are logged here.
type Async struct {
	next    Notifier
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync wraps next.
func NewAsync(next Notifier, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = DefaultAsyncTimeout
	}
	return &Async{next: next, timeout: timeout}
}

// FeedbackReceived schedules the delivery and returns at once.
func (a *Async) FeedbackReceived(ctx context.Context, fb models.Feedback) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		if err := a.next.FeedbackReceived(ctx, fb); err != nil {
			logging.Warn().Err(err).Str("feedback_id", fb.ID).Msg("feedback notification failed")
		}
	}()
	return nil
}

// Wait blocks until every scheduled delivery has finished.
func (a *Async) Wait() {
	a.wg.Wait()
}

func feedbackMessage(from, to string, fb models.Feedback) *mail.SGMailV3 {
	subject := fmt.Sprintf("New StrayWatch feedback from %s", fb.Name)

	plain := fmt.Sprintf("From: %s <%s>\nUser: %s\n\n%s", fb.Name, fb.Email, fb.UserID, fb.Message)
	htmlContent := fmt.Sprintf(
		"<p><strong>From:</strong> %s &lt;%s&gt;<br><strong>User:</strong> %s</p><p>%s</p>",
		html.EscapeString(fb.Name),
		html.EscapeString(fb.Email),
		html.EscapeString(fb.UserID),
		htmlLines(fb.Message),
	)

	msg := mail.NewSingleEmail(
		mail.NewEmail("StrayWatch Feedback", from),
		subject,
		mail.NewEmail("StrayWatch", to),
		plain,
		htmlContent,
	)
	msg.SetReplyTo(mail.NewEmail(fb.Name, fb.Email))
	return msg
}

// htmlLines escapes s and keeps its line breaks.
func htmlLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}
