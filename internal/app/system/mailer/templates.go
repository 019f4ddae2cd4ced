// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"html/template"
	"strconv"
	"strings"
)

// Tagline closes every customer-facing email.
const Tagline = "Reborn fabrics. Reborn future."

// PasswordResetEmailData contains the data for a password reset email.
type PasswordResetEmailData struct {
	AppName   string
	UserName  string
	ResetURL  string
	ExpiryMin int
}

// PasswordResetEmail generates both plain text and HTML versions of a password reset email.
func PasswordResetEmail(data PasswordResetEmailData) (textBody, htmlBody string) {
	textBody = "Hello " + data.UserName + ",\n\n" +
		"You requested to reset your password for your " + data.AppName + " account.\n\n" +
		"Click the link below to reset your password:\n" +
		data.ResetURL + "\n\n" +
		"This link will expire in " + expiryText(data.ExpiryMin) + ".\n\n" +
		"If you did not request this, please ignore this email and your password will remain unchanged.\n\n" +
		signature(data.AppName)

	return textBody, render(passwordResetHTMLTmpl, data)
}

// PasswordChangedEmailData contains the data for a password changed confirmation email.
type PasswordChangedEmailData struct {
	AppName   string
	UserName  string
	ForgotURL string
}

// PasswordChangedEmail generates both plain text and HTML versions of a password changed confirmation email.
func PasswordChangedEmail(data PasswordChangedEmailData) (textBody, htmlBody string) {
	textBody = "Hello " + data.UserName + ",\n\n" +
		"Your " + data.AppName + " password has been changed.\n\n" +
		"If you made this change, you can safely ignore this email.\n\n" +
		"If you did NOT make this change, please reset your password immediately:\n" +
		data.ForgotURL + "\n\n" +
		signature(data.AppName)

	return textBody, render(passwordChangedHTMLTmpl, data)
}

// ContactConfirmationEmailData contains the data for the reply sent to a contact form sender.
type ContactConfirmationEmailData struct {
	AppName  string
	UserName string
	Subject  string
}

// ContactConfirmationEmail thanks the sender and sets a response expectation.
func ContactConfirmationEmail(data ContactConfirmationEmailData) (textBody, htmlBody string) {
	textBody = "Dear " + data.UserName + ",\n\n" +
		"Thank you for contacting " + data.AppName + ". We have received your message regarding \"" + data.Subject + "\".\n\n" +
		"Our team will review your message and get back to you as soon as possible, typically within 24-48 hours.\n\n" +
		signature(data.AppName)

	return textBody, render(contactConfirmationHTMLTmpl, data)
}

// ServiceConfirmationEmailData contains the data for the reply sent to a service requester.
type ServiceConfirmationEmailData struct {
	AppName     string
	UserName    string
	ServiceName string
}

// ServiceConfirmationEmail acknowledges a service request.
func ServiceConfirmationEmail(data ServiceConfirmationEmailData) (textBody, htmlBody string) {
	textBody = "Dear " + data.UserName + ",\n\n" +
		"Thank you for your interest in our " + data.ServiceName + " service.\n\n" +
		"We have received your request and our team will contact you within 1-2 business days to discuss your requirements.\n\n" +
		signature(data.AppName)

	return textBody, render(serviceConfirmationHTMLTmpl, data)
}

// ContactAdminEmailData describes a new contact message for the site admin.
type ContactAdminEmailData struct {
	Name           string
	Email          string
	Subject        string
	Message        string
	AttachmentName string
	MessageID      string
}

// ContactAdminEmail is a plain-text notification; the admin reads it in a mail client.
func ContactAdminEmail(data ContactAdminEmailData) string {
	attachment := "No attachment"
	if data.AttachmentName != "" {
		attachment = "Attachment: " + data.AttachmentName
	}
	return "New contact message received:\n\n" +
		"From: " + data.Name + " <" + data.Email + ">\n" +
		"Subject: " + data.Subject + "\n\n" +
		"Message:\n" + data.Message + "\n\n" +
		attachment + "\n\n" +
		"Message ID: " + data.MessageID + "\n"
}

// ServiceAdminEmailData describes a new service request for the site admin.
type ServiceAdminEmailData struct {
	ServiceName string
	Name        string
	Email       string
	Phone       string
	Company     string
	Message     string
	RequestID   string
}

// ServiceAdminEmail is a plain-text notification for the admin inbox.
func ServiceAdminEmail(data ServiceAdminEmailData) string {
	return "New service request received:\n\n" +
		"Service: " + data.ServiceName + "\n" +
		"Name: " + data.Name + "\n" +
		"Email: " + data.Email + "\n" +
		"Phone: " + orDefault(data.Phone, "Not provided") + "\n" +
		"Company: " + orDefault(data.Company, "Not provided") + "\n\n" +
		"Message:\n" + data.Message + "\n\n" +
		"Request ID: " + data.RequestID + "\n"
}

func signature(appName string) string {
	return "Best regards,\nThe " + appName + " Team\n\n---\n" + appName + " - " + Tagline
}

func expiryText(min int) string {
	switch {
	case min == 60:
		return "1 hour"
	case min > 60 && min%60 == 0:
		return strconv.Itoa(min/60) + " hours"
	default:
		return strconv.Itoa(min) + " minutes"
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

// frame is the shared HTML shell; each email defines "content".
var frame = template.Must(template.New("frame").Funcs(template.FuncMap{
	"expiry":  expiryText,
	"tagline": func() string { return Tagline },
}).Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; line-height: 1.6; color: #333333; background-color: #f4f4f0;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f4f4f0;">
    <tr>
      <td align="center" style="padding: 32px 16px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 600px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 24px 32px; border-bottom: 3px solid #2d5016;">
              <h1 style="margin: 0; font-size: 22px; color: #2d5016;">{{.AppName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              {{template "content" .}}
              <p style="margin: 24px 0 0 0;">Best regards,<br>The {{.AppName}} Team</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 16px 32px; border-top: 1px solid #e5e5e0; font-size: 12px; color: #666666; text-align: center;">
              {{.AppName}} - {{tagline}}
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`))

func withContent(name, content string) *template.Template {
	return template.Must(template.Must(frame.Clone()).New(name).Parse(`{{define "content"}}` + content + `{{end}}{{template "frame" .}}`))
}

var passwordResetHTMLTmpl = withContent("password_reset", `
              <h2 style="margin: 0 0 16px 0; font-size: 20px; color: #2d5016;">Password Reset Request</h2>
              <p>Hello {{.UserName}},</p>
              <p>You requested to reset your password for your {{.AppName}} account.</p>
              <p style="text-align: center; padding: 8px 0 16px 0;">
                <a href="{{.ResetURL}}" style="display: inline-block; padding: 12px 30px; background-color: #2d5016; color: #ffffff; text-decoration: none; border-radius: 5px; font-weight: bold;">Reset Password</a>
              </p>
              <p style="font-size: 14px; color: #666666;">Or copy and paste this link into your browser:<br>
                <span style="word-break: break-all;">{{.ResetURL}}</span></p>
              <p><strong>This link will expire in {{expiry .ExpiryMin}}.</strong></p>
              <p>If you did not request this, please ignore this email and your password will remain unchanged.</p>`)

var passwordChangedHTMLTmpl = withContent("password_changed", `
              <h2 style="margin: 0 0 16px 0; font-size: 20px; color: #2d5016;">Your password was changed</h2>
              <p>Hello {{.UserName}},</p>
              <p>Your {{.AppName}} password has been changed. If you made this change, no action is needed.</p>
              <p>If you did <strong>not</strong> make this change, <a href="{{.ForgotURL}}" style="color: #2d5016;">reset your password</a> immediately.</p>`)

var contactConfirmationHTMLTmpl = withContent("contact_confirmation", `
              <h2 style="margin: 0 0 16px 0; font-size: 20px; color: #2d5016;">We received your message</h2>
              <p>Dear {{.UserName}},</p>
              <p>Thank you for contacting {{.AppName}}. We have received your message regarding "{{.Subject}}".</p>
              <p>Our team will review your message and get back to you as soon as possible, typically within 24-48 hours.</p>`)

var serviceConfirmationHTMLTmpl = withContent("service_confirmation", `
              <h2 style="margin: 0 0 16px 0; font-size: 20px; color: #2d5016;">Service request received</h2>
              <p>Dear {{.UserName}},</p>
              <p>Thank you for your interest in our <strong>{{.ServiceName}}</strong> service.</p>
              <p>We have received your request and our team will contact you within 1-2 business days to discuss your requirements.</p>`)
