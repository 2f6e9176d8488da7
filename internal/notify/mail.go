// Package notify implements the background job handlers: assignment e-mails
// and countdown report files.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"task-manager/internal/models"
	"task-manager/pkg/logger"
)

type Message struct {
	To      []string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// DefaultSMTPTimeout bounds one delivery when no timeout is configured.
const DefaultSMTPTimeout = 15 * time.Second

type SMTPMailer struct {
	host     string
	port     int
	user     string
	password string
	from     string
	timeout  time.Duration
}

func NewSMTPMailer(host string, port int, user, password, from string, timeout time.Duration) *SMTPMailer {
	if timeout <= 0 {
		timeout = DefaultSMTPTimeout
	}
	return &SMTPMailer{host: host, port: port, user: user, password: password, from: from, timeout: timeout}
}

func (m *SMTPMailer) message(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.from, err)
	}
	if err := out.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients %v: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetMessageID()
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return out, nil
}

// dial bounds the whole SMTP conversation by the earlier of ctx's deadline and
// the mailer timeout. A cancelled ctx closes the connection.
func (m *SMTPMailer) dial(sendCtx context.Context) mail.DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		deadline := time.Now().Add(m.timeout)
		if d, ok := sendCtx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		dialer := net.Dialer{Deadline: deadline}
		conn, err := dialer.DialContext(sendCtx, network, address)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
		stop := context.AfterFunc(sendCtx, func() { conn.Close() })
		return &stopConn{Conn: conn, stop: stop}, nil
	}
}

// stopConn releases the cancellation hook once the conversation is over.
type stopConn struct {
	net.Conn
	stop func() bool
}

func (c *stopConn) Close() error {
	c.stop()
	return c.Conn.Close()
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out, err := m.message(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTimeout(m.timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(m.dial(ctx)),
	}
	if m.user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.user),
			mail.WithPassword(m.password),
		)
	}
	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("configuring smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("sending mail to %v: %w", msg.To, err)
	}
	logger.FromContext(ctx).Info("Mail sent", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

const AssignSubject = "You've assigned a task."

const notificationTemplate = `<!DOCTYPE html>
<html>
<body>
  <h2>You've been assigned a task</h2>
  <p><strong>{{ .Task.Title }}</strong></p>
  <p>{{ .Task.Description }}</p>
  <ul>
    <li>State: {{ .Task.State }}</li>
    <li>Priority: {{ .Task.Priority }}</li>
    <li>Deadline: {{ .Task.Deadline }}</li>
    {{- if .Author }}
    <li>Author: {{ .Author.Name }} {{ .Author.Surname }} ({{ .Author.Username }})</li>
    {{- end }}
  </ul>
</body>
</html>
`

var notificationTmpl = template.Must(template.New("notification").Parse(notificationTemplate))

func renderNotification(task *models.Task, author *models.User) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Task   *models.Task
		Author *models.User
	}{task, author}
	if err := notificationTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute notification template: %w", err)
	}
	return buf.String(), nil
}
