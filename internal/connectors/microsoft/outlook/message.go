package outlook

import "github.com/custodia-labs/o365connect/internal/core/domain"

// SendMailRequest is the body of a sendmail call to the Outlook REST API.
type SendMailRequest struct {
	Message         Message `json:"Message"`
	SaveToSentItems bool    `json:"SaveToSentItems"`
}

// Message represents an outgoing Outlook message.
type Message struct {
	Subject      string      `json:"Subject"`
	Body         MessageBody `json:"Body"`
	ToRecipients []Recipient `json:"ToRecipients"`
}

// MessageBody represents the body of an email.
type MessageBody struct {
	ContentType string `json:"ContentType"`
	Content     string `json:"Content"`
}

// Recipient represents an email recipient.
type Recipient struct {
	EmailAddress EmailAddress `json:"EmailAddress"`
}

// EmailAddress represents an email address with optional name.
type EmailAddress struct {
	Name    string `json:"Name,omitempty"`
	Address string `json:"Address"`
}

// NewSendMailRequest builds a single-recipient HTML message.
func NewSendMailRequest(msg domain.OutboundMessage, saveToSentItems bool) SendMailRequest {
	return SendMailRequest{
		Message: Message{
			Subject: msg.Subject,
			Body: MessageBody{
				ContentType: "HTML",
				Content:     msg.HTMLBody,
			},
			ToRecipients: []Recipient{
				{EmailAddress: EmailAddress{Address: msg.Recipient}},
			},
		},
		SaveToSentItems: saveToSentItems,
	}
}
