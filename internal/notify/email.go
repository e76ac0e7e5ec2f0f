package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
)

var taskCreatedTemplate = template.Must(template.New("task-created").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format(dateLayout) },
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>New task: {{.Title}}</h2>
  <p>{{.Description}}</p>
  <table>
    <tr><td><b>Priority</b></td><td>{{.Priority}}</td></tr>
    <tr><td><b>Type</b></td><td>{{.Type}}</td></tr>
    <tr><td><b>Start</b></td><td>{{date .StartDate}}</td></tr>
    <tr><td><b>End</b></td><td>{{date .EndDate}}</td></tr>
    {{- if .Assignees}}
    <tr><td><b>Assigned to</b></td><td>{{range $i, $a := .Assignees}}{{if $i}}, {{end}}{{$a}}{{end}}</td></tr>
    {{- end}}
    {{- if .Tags}}
    <tr><td><b>Tags</b></td><td>{{range $i, $t := .Tags}}{{if $i}}, {{end}}#{{$t}}{{end}}</td></tr>
    {{- end}}
    <tr><td><b>Attachments</b></td><td>{{.AttachmentCount}}</td></tr>
  </table>
</body>
</html>
`))

var dueSoonTemplate = template.Must(template.New("due-soon").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format(dateLayout) },
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>Tasks ending soon</h2>
  <ul>
  {{- range .}}
    <li><b>{{.Title}}</b> ({{.Priority}}, {{.Status}}) ends {{date .EndDate}}</li>
  {{- end}}
  </ul>
</body>
</html>
`))

// SMTPConfig holds the settings needed to reach a mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout bounds dialing when the caller's context has no deadline.
	Timeout time.Duration
}

const defaultSMTPTimeout = 30 * time.Second

type envelope struct {
	To      string
	Subject string
	HTML    string
}

// Mailer sends HTML e-mails over SMTP.
type Mailer struct {
	cfg    SMTPConfig
	dialer net.Dialer
	send   func(ctx context.Context, env envelope) error
}

func NewMailer(cfg SMTPConfig) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	m := &Mailer{cfg: cfg}
	m.send = m.dialAndSend
	return m
}

func (m *Mailer) TaskCreated(ctx context.Context, n TaskCreated) error {
	var body bytes.Buffer
	if err := taskCreatedTemplate.Execute(&body, n); err != nil {
		return fmt.Errorf("render task email: %w", err)
	}
	return m.deliver(ctx, envelope{To: n.Recipient, Subject: "New Task Created: " + n.Title, HTML: body.String()})
}

func (m *Mailer) DueSoon(ctx context.Context, recipient string, tasks []DueTask) error {
	var body bytes.Buffer
	if err := dueSoonTemplate.Execute(&body, tasks); err != nil {
		return fmt.Errorf("render reminder email: %w", err)
	}
	subject := fmt.Sprintf("%d task(s) ending soon", len(tasks))
	return m.deliver(ctx, envelope{To: recipient, Subject: subject, HTML: body.String()})
}

func (m *Mailer) deliver(ctx context.Context, env envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(ctx, env); err != nil {
		return fmt.Errorf("send mail to %s: %w", env.To, err)
	}
	return nil
}

func (m *Mailer) buildMessage(env envelope) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.cfg.From, err)
	}
	if err := msg.To(env.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", env.To, err)
	}
	msg.Subject(env.Subject)
	msg.SetBodyString(mail.TypeTextHTML, env.HTML)
	return msg, nil
}

// dialAndSend delivers env on a fresh connection whose I/O deadline follows
// ctx. The connection is closed before returning, whatever the outcome.
func (m *Mailer) dialAndSend(ctx context.Context, env envelope) error {
	msg, err := m.buildMessage(env)
	if err != nil {
		return err
	}

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	dial := func(dialCtx context.Context, network, addr string) (net.Conn, error) {
		conn, err := m.dialer.DialContext(dialCtx, network, addr)
		if err != nil {
			return nil, err
		}
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}
		mu.Lock()
		conns = append(conns, conn)
		mu.Unlock()
		return conn, nil
	}
	// Unblock pending reads and writes as soon as ctx is canceled.
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.SetDeadline(time.Now())
		}
	})
	defer stop()

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(dial),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		if ctxErr := contextCause(ctx); ctxErr != nil {
			return fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return err
	}
	return nil
}

// contextCause reports why ctx ended, treating a passed deadline as expired
// even if the context timer has not fired yet.
func contextCause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return nil
}
