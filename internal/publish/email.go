package publish

import (
	"context"
	"dph-tracker/internal/chrono"
	"dph-tracker/internal/telemetry"
	"dph-tracker/internal/tracker"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("dph-tracker.internal.publish")

const (
	report_email_send = "email.send"
)

type SmtpOptions struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
	To           []string
}

type sendFunc func(mail *email.Email) error

// Email sends a summary of the new date's records to a list of recipients.
type Email struct {
	opts SmtpOptions
	send sendFunc
	tel  telemetry.API
}

func NewEmail(opts SmtpOptions, tel telemetry.API) (Email, error) {
	if opts.Server == "" || opts.EmailAddress == "" {
		return Email{}, fmt.Errorf("email: smtp server and address must be set")
	}
	if len(opts.To) == 0 {
		return Email{}, fmt.Errorf("email: no recipients")
	}
	return newEmail(opts, smtpSender(opts), tel), nil
}

func newEmail(opts SmtpOptions, send sendFunc, tel telemetry.API) Email {
	return Email{
		opts: opts,
		send: send,
		tel:  telemetry.NewScopedAPI("publish", tel),
	}
}

// smtpSender authenticates with PLAIN auth, falling back to no auth for
// relays that don't support it.
func smtpSender(opts SmtpOptions) sendFunc {
	addr := fmt.Sprintf("%s:%d", opts.Server, opts.Port)
	return func(mail *email.Email) error {
		err := mail.Send(addr, smtp.PlainAuth("", opts.EmailAddress, opts.Password, opts.Server))
		if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
			err = mail.Send(addr, nil)
		}
		return err
	}
}

func (p Email) Name() string {
	return "email"
}

// RenderSummary renders the records of an update as a plain text table.
func RenderSummary(update tracker.Update) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Section", "Row", "Count"})
	for _, r := range update.Records {
		t.AppendRow(table.Row{r.Section, r.RowName, r.Count})
	}
	t.AppendFooter(table.Row{"", "Total rows", len(update.Records)})
	return t.Render()
}

func (p Email) Publish(ctx context.Context, update tracker.Update) error {
	_, span := tracer.Start(ctx, "Email.Publish")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("L.A. County Tracker <%s>", p.opts.EmailAddress)
	mail.To = p.opts.To
	mail.Subject = fmt.Sprintf("L.A. County counts for %s", update.Date)

	body := fmt.Sprintf(`L.A. County tracker updated with counts from %s.
Collected at %s

%s
`, update.Date, chrono.FormatLog(update.CollectedAt), RenderSummary(update))
	mail.Text = []byte(body)

	err := p.send(mail)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		p.tel.ReportBroken(report_email_send, err, p.opts.Server)
		return err
	}
	return nil
}
