// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendReport(toEmail, query, report string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	clientURL   string
}

func NewEmailService(host string, port int, username, password, senderEmail, senderName, clientURL string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		senderName:  senderName,
		clientURL:   clientURL,
	}
}

func (s *emailService) SendReport(toEmail, query, report string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.senderEmail, s.senderName))
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Your research report: %s", query))

	// The report is markdown produced by a model, escape it before
	// embedding in HTML.
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Your research is ready</h2>
			<p>The deep research run for <b>%s</b> has finished. The full report is below.</p>
			<pre style="background-color: #f6f8fa; padding: 16px; border-radius: 5px; white-space: pre-wrap; font-family: Menlo, monospace; font-size: 13px;">%s</pre>
			<p><a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Open the app</a></p>
			<p>If you didn't request this report, please ignore this email.</p>
		</div>
	`, html.EscapeString(query), html.EscapeString(report), s.clientURL)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send report to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Report sent to %s\n", toEmail)
	return nil
}
