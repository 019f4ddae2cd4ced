// internal/app/system/mailer/mailer.go
package mailer

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config is the SMTP relay plus the file fallback.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
	LogPath  string // e.g. logs/email.log; empty disables the fallback
}

// Email is one outgoing message. HTMLBody is optional.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer relays through SMTP when a host is set. Without one, and after a
// failed relay, messages are appended to LogPath.
type Mailer struct {
	cfg Config
	log *zap.Logger

	fileMu sync.Mutex
}

func New(cfg Config, log *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// SMTPEnabled reports whether a relay host is configured.
func (m *Mailer) SMTPEnabled() bool {
	return m.cfg.Host != ""
}

func (m *Mailer) Send(email Email) error {
	if !m.SMTPEnabled() {
		return m.appendToLog(email)
	}

	var auth smtp.Auth
	if m.cfg.User != "" && m.cfg.Pass != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{email.To}, m.buildMessage(email)); err != nil {
		m.log.Error("smtp delivery failed", zap.String("to", email.To), zap.String("subject", email.Subject), zap.Error(err))
		if m.cfg.LogPath != "" {
			if ferr := m.appendToLog(email); ferr != nil {
				m.log.Error("email log fallback failed", zap.Error(ferr))
			}
		}
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info("email sent", zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}

func (m *Mailer) sender() string {
	if m.cfg.FromName == "" {
		return m.cfg.From
	}
	return m.cfg.FromName + " <" + m.cfg.From + ">"
}

const plainType = "text/plain; charset=UTF-8"

func (m *Mailer) buildMessage(email Email) []byte {
	var buf bytes.Buffer
	header := func(k, v string) { buf.WriteString(k + ": " + v + "\r\n") }

	header("From", m.sender())
	header("To", email.To)
	header("Subject", email.Subject)
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	if email.HTMLBody == "" {
		header("Content-Type", plainType)
		buf.WriteString("\r\n")
		buf.WriteString(email.TextBody)
		return buf.Bytes()
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct{ ctype, content string }{
		{plainType, email.TextBody},
		{"text/html; charset=UTF-8", email.HTMLBody},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}})
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte(part.content))
	}
	_ = mw.Close()

	header("Content-Type", `multipart/alternative; boundary="`+mw.Boundary()+`"`)
	buf.WriteString("\r\n")
	buf.Write(body.Bytes())
	return buf.Bytes()
}

// logEntry renders email for the fallback file.
func logEntry(email Email, at time.Time) string {
	rule := func(c string) string { return strings.Repeat(c, 80) + "\n" }

	var b strings.Builder
	b.WriteString(rule("="))
	fmt.Fprintf(&b, "Timestamp: %s UTC\n", at.UTC().Format(time.DateTime))
	fmt.Fprintf(&b, "To: %s\nSubject: %s\n", email.To, email.Subject)
	b.WriteString(rule("-"))
	b.WriteString(email.TextBody + "\n")
	if email.HTMLBody != "" {
		b.WriteString("\nHTML Version:\n" + email.HTMLBody + "\n")
	}
	b.WriteString(rule("="))
	b.WriteString("\n")
	return b.String()
}

func (m *Mailer) appendToLog(email Email) error {
	if m.cfg.LogPath == "" {
		m.log.Warn("email dropped: no SMTP host and no log path", zap.String("to", email.To), zap.String("subject", email.Subject))
		return nil
	}

	m.fileMu.Lock()
	defer m.fileMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.cfg.LogPath), 0o755); err != nil {
		return fmt.Errorf("create email log dir: %w", err)
	}
	f, err := os.OpenFile(m.cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open email log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(logEntry(email, time.Now())); err != nil {
		return fmt.Errorf("write email log: %w", err)
	}
	m.log.Info("email written to log file", zap.String("to", email.To), zap.String("path", m.cfg.LogPath))
	return nil
}

// ValidAddress reports whether s parses as a single RFC 5322 address.
func ValidAddress(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}
