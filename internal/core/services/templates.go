package services

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/custodia-labs/o365connect/internal/core/domain"
)

// DefaultMailSubject is the subject of the welcome message.
const DefaultMailSubject = "Welcome to Office 365 development with Go and the Office 365 Connect sample"

// DefaultMailBody is the HTML body of the welcome message.
const DefaultMailBody = `<html><body>
<h2>Congratulations, {{.GivenName}}!</h2>
<p>This is a message from the Office 365 Connect sample. You are well on your way to incorporating Office 365 services in your apps.</p>
<h3>What's next?</h3>
<ul>
<li>Check out <a href="https://msdn.microsoft.com/office/office365/howto/platform-development-overview">the Office 365 development overview</a> to start building Office 365 apps today.</li>
<li>Browse the REST reference for the <a href="https://msdn.microsoft.com/office/office365/api/mail-rest-operations">mail API</a>.</li>
</ul>
<p>Signed in as {{.DisplayableID}}.</p>
</body></html>`

// MailTemplate renders the subject and HTML body for a signed-in user.
type MailTemplate struct {
	Subject string
	body    *template.Template
}

// NewMailTemplate parses body as an html/template. Empty values fall back to
// the welcome message defaults.
func NewMailTemplate(subject, body string) (*MailTemplate, error) {
	if subject == "" {
		subject = DefaultMailSubject
	}
	if body == "" {
		body = DefaultMailBody
	}
	tmpl, err := template.New("body").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: mail body template: %w", domain.ErrConfiguration, err)
	}
	return &MailTemplate{Subject: subject, body: tmpl}, nil
}

// Render fills the body template from identity.
func (t *MailTemplate) Render(identity *domain.Identity) (string, error) {
	data := struct {
		GivenName     string
		DisplayableID string
	}{}
	if identity != nil {
		data.GivenName = identity.GivenName
		data.DisplayableID = identity.DisplayableID
	}
	if data.GivenName == "" {
		data.GivenName = "there"
	}

	var buf bytes.Buffer
	if err := t.body.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render mail body: %w", err)
	}
	return buf.String(), nil
}
