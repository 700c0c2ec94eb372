// Package maildir keeps a copy of every sent message in a local Maildir so
// it can be read with any mail client.
package maildir

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-maildir"

	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
)

// Ensure Archive implements the interface.
var _ driven.SentArchive = (*Archive)(nil)

// Archive delivers sent messages into a Maildir.
type Archive struct {
	path string
	now  func() time.Time

	mu     sync.Mutex
	sender string
}

// New returns an archive rooted at path. sender fills the From header and may
// be empty.
func New(path, sender string) *Archive {
	return &Archive{path: path, sender: sender, now: time.Now}
}

// Path returns the Maildir root.
func (a *Archive) Path() string {
	return a.path
}

// SetSender changes the From header used for later messages.
func (a *Archive) SetSender(sender string) {
	a.mu.Lock()
	a.sender = sender
	a.mu.Unlock()
}

// Store writes msg to the new/ folder of the Maildir.
func (a *Archive) Store(ctx context.Context, id domain.MessageID, msg domain.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := a.ensureMaildir()
	if err != nil {
		return fmt.Errorf("maildir: %w", err)
	}

	delivery, err := maildir.NewDelivery(string(dir))
	if err != nil {
		return fmt.Errorf("maildir: %w", err)
	}
	if _, err := io.Copy(delivery, bytes.NewReader(a.render(id, msg))); err != nil {
		_ = delivery.Abort()
		return fmt.Errorf("maildir: %w", err)
	}
	if err := delivery.Close(); err != nil {
		return fmt.Errorf("maildir: %w", err)
	}
	return nil
}

func (a *Archive) ensureMaildir() (maildir.Dir, error) {
	dir := maildir.Dir(a.path)
	if _, err := os.Stat(filepath.Join(a.path, "cur")); os.IsNotExist(err) {
		if err := os.MkdirAll(a.path, 0o700); err != nil {
			return "", err
		}
		if err := dir.Init(); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// render builds an RFC 5322 message with an HTML body.
func (a *Archive) render(id domain.MessageID, msg domain.OutboundMessage) []byte {
	var b bytes.Buffer
	header := func(name, value string) {
		fmt.Fprintf(&b, "%s: %s\r\n", name, value)
	}

	a.mu.Lock()
	sender := a.sender
	a.mu.Unlock()
	if sender != "" {
		header("From", (&mail.Address{Address: sender}).String())
	}
	header("To", (&mail.Address{Address: msg.Recipient}).String())
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", a.now().Format(time.RFC1123Z))
	if id != "" {
		header("Message-ID", "<"+sanitiseID(string(id))+"@o365connect>")
	}
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.HTMLBody, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}

func sanitiseID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '@', ' ', '\r', '\n':
			return '-'
		}
		return r
	}, id)
}
