package emailNotifier

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/KotFed0t/fund_calc_pipeline/config"
	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/KotFed0t/fund_calc_pipeline/utils"
	"github.com/wneessen/go-mail"
)

// EmailNotifier sends the end-of-run summary over SMTP. Recipient lists are
// picked by the overall outcome so failures can page a wider audience than
// routine successes.
type EmailNotifier struct {
	cfg      *config.Config
	password string
}

func New(cfg *config.Config) *EmailNotifier {
	password, err := os.ReadFile(cfg.Smtp.PasswordFile)
	if err != nil {
		log.Panicf("can't read smtp password file: %s", err)
	}

	return &EmailNotifier{
		cfg:      cfg,
		password: strings.TrimSpace(string(password)),
	}
}

// SendDailySummary emails the per-fund outcome table with artifacts attached.
// s3Uploads maps fund name to per-file upload success (nil when s3 is off).
func (n *EmailNotifier) SendDailySummary(ctx context.Context, date string, results []model.RunResult, attachments []model.Attachment, s3Uploads map[string]map[string]bool) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "EmailNotifier.SendDailySummary"

	slog.Debug("SendDailySummary start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("funds", len(results)))

	status := overallStatus(results)
	recipients := n.recipientsFor(status)
	if len(recipients) == 0 {
		slog.Warn("no recipients configured for status, summary email skipped",
			slog.String("rqID", rqID), slog.String("op", op), slog.String("status", status))
		return nil
	}

	subject := fmt.Sprintf("[%s] Fund calculation %s", status, date)
	body := n.buildSummaryBody(date, results, s3Uploads)

	msg, err := n.newMessage(recipients, subject, body)
	if err != nil {
		return err
	}

	for _, att := range attachments {
		if int64(len(att.Data)) > n.cfg.Smtp.MaxAttachmentBytes {
			slog.Warn("attachment exceeds size limit, skipped",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("file", att.Filename),
				slog.Int("sizeBytes", len(att.Data)),
			)
			continue
		}
		if err := msg.AttachReader(att.Filename, bytes.NewReader(att.Data)); err != nil {
			return fmt.Errorf("attach %s: %w", att.Filename, err)
		}
	}

	if err := n.send(ctx, msg); err != nil {
		return err
	}

	slog.Debug("SendDailySummary completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("recipients", len(recipients)))

	return nil
}

// SendCriticalFailure notifies the failure list when the whole run aborted
// before any fund produced a result (e.g. market data unavailable).
func (n *EmailNotifier) SendCriticalFailure(ctx context.Context, date, reason string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "EmailNotifier.SendCriticalFailure"

	recipients := n.cfg.Smtp.FailureRecipients
	if len(recipients) == 0 {
		slog.Warn("no failure recipients configured, critical alert skipped", slog.String("rqID", rqID), slog.String("op", op))
		return nil
	}

	subject := fmt.Sprintf("[FAILURE] Fund calculation %s aborted", date)
	body := fmt.Sprintf(
		"<h2>Fund calculation aborted</h2><p>date: %s</p><p>reason: %s</p>",
		html.EscapeString(date), html.EscapeString(reason),
	)

	msg, err := n.newMessage(recipients, subject, body)
	if err != nil {
		return err
	}

	return n.send(ctx, msg)
}

func (n *EmailNotifier) newMessage(recipients []string, subject, htmlBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if err := msg.From(n.cfg.Smtp.Username); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	return msg, nil
}

func (n *EmailNotifier) send(ctx context.Context, msg *mail.Msg) error {
	tlsPolicy := mail.TLSOpportunistic
	if n.cfg.Smtp.UseTLS {
		tlsPolicy = mail.TLSMandatory
	}

	client, err := mail.NewClient(
		n.cfg.Smtp.Host,
		mail.WithPort(n.cfg.Smtp.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.Smtp.Username),
		mail.WithPassword(n.password),
		mail.WithTLSPolicy(tlsPolicy),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) recipientsFor(status string) []string {
	switch status {
	case "SUCCESS":
		return n.cfg.Smtp.SuccessRecipients
	case "PARTIAL":
		return n.cfg.Smtp.PartialRecipients
	default:
		return n.cfg.Smtp.FailureRecipients
	}
}

func (n *EmailNotifier) buildSummaryBody(date string, results []model.RunResult, s3Uploads map[string]map[string]bool) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("<h2>Fund calculation summary - %s</h2>", html.EscapeString(date)))
	b.WriteString("<table border=\"1\" cellpadding=\"4\" cellspacing=\"0\">")
	b.WriteString("<tr><th>fund</th><th>status</th><th>runtime</th><th>output</th><th>details</th></tr>")

	for _, res := range results {
		details := fmt.Sprintf("%d warnings, %d alerts", len(res.Warnings), len(res.Alerts))
		if res.Error != "" {
			details = html.EscapeString(res.Error)
		}

		b.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td>%s</td><td>%.1fs</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(res.Fund),
			res.Status,
			res.Runtime.Seconds(),
			html.EscapeString(res.OutputPath),
			details,
		))
	}
	b.WriteString("</table>")

	for _, res := range results {
		if len(res.Warnings) > 0 {
			b.WriteString(fmt.Sprintf("<h3>%s warnings</h3><ul>", html.EscapeString(res.Fund)))
			for _, warning := range res.Warnings {
				b.WriteString("<li>" + html.EscapeString(warning) + "</li>")
			}
			b.WriteString("</ul>")
		}
		if len(res.Alerts) > 0 {
			b.WriteString(fmt.Sprintf("<h3>%s reconciliation alerts</h3><ul>", html.EscapeString(res.Fund)))
			for _, alert := range res.Alerts {
				b.WriteString("<li>" + html.EscapeString(alert) + "</li>")
			}
			b.WriteString("</ul>")
		}
	}

	if len(s3Uploads) > 0 {
		b.WriteString("<h3>S3 uploads</h3><ul>")

		funds := make([]string, 0, len(s3Uploads))
		for fund := range s3Uploads {
			funds = append(funds, fund)
		}
		sort.Strings(funds)

		for _, fund := range funds {
			uploaded, total := 0, 0
			for _, ok := range s3Uploads[fund] {
				total++
				if ok {
					uploaded++
				}
			}
			b.WriteString(fmt.Sprintf("<li>%s: %d/%d files uploaded</li>", html.EscapeString(fund), uploaded, total))
		}
		b.WriteString("</ul>")
	}

	return b.String()
}

func overallStatus(results []model.RunResult) string {
	succeeded, failed := 0, 0
	for _, res := range results {
		if res.Status == model.RunStatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}

	switch {
	case failed == 0 && succeeded > 0:
		return "SUCCESS"
	case failed > 0 && succeeded > 0:
		return "PARTIAL"
	default:
		return "FAILURE"
	}
}
