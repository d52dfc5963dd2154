package mail

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message"

	"smart-mail-relay-go/internal/model"
)

// parseMessage turns one fetched *imap.Message into a CanonicalMessage.
// Grounded on the teacher's parseIMAPMessage/parseIMAPBody (fetcher.go):
// envelope fields map directly, body parsing walks multipart/* recursively
// via go-message and keeps the first text/plain and text/html part found.
func parseMessage(msg *imap.Message, section *imap.BodySectionName) (model.CanonicalMessage, error) {
	cm := model.CanonicalMessage{
		UID:   msg.Uid,
		Flags: msg.Flags,
	}

	if env := msg.Envelope; env != nil {
		cm.Subject = env.Subject
		cm.MessageID = env.MessageId
		cm.Date = env.Date
		if len(env.From) > 0 {
			cm.From = env.From[0].Address()
		}
		for _, addr := range env.To {
			cm.To = append(cm.To, addr.Address())
		}
		for _, addr := range env.Cc {
			cm.CC = append(cm.CC, addr.Address())
		}
		for _, addr := range env.Bcc {
			cm.BCC = append(cm.BCC, addr.Address())
		}
	}
	if cm.MessageID == "" {
		// Some servers/accounts omit Message-Id; fall back to a synthetic id
		// built from the UID and date so the idempotency probe still has a key.
		cm.MessageID = fmt.Sprintf("uid-%d-%s", msg.Uid, cm.Date.UTC().Format("20060102T150405Z"))
	}

	r := msg.GetBody(section)
	if r == nil {
		return cm, fmt.Errorf("mail: message %d has no body section", msg.Uid)
	}
	entity, err := message.Read(r)
	if err != nil {
		return cm, fmt.Errorf("mail: reading message %d: %w", msg.Uid, err)
	}
	if err := walkParts(entity, &cm); err != nil {
		return cm, fmt.Errorf("mail: parsing body of message %d: %w", msg.Uid, err)
	}
	return cm, nil
}

// walkParts recursively descends multipart/* entities, filling in the first
// text/plain and text/html bodies it finds (spec §4.3: "decodes base64 parts
// per MIME type ... recurses into multipart/* parts ... ignores attachments").
func walkParts(entity *message.Entity, cm *model.CanonicalMessage) error {
	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if err := walkParts(part, cm); err != nil {
				return err
			}
		}
	}

	contentType, _, err := entity.Header.ContentType()
	if err != nil {
		contentType = "text/plain"
	}
	disposition := entity.Header.Get("Content-Disposition")
	if strings.Contains(strings.ToLower(disposition), "attachment") {
		return nil // attachment parts are skipped; no content or metadata is kept
	}

	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return err
	}

	switch strings.ToLower(contentType) {
	case "text/plain":
		if cm.BodyText == "" {
			cm.BodyText = string(content)
		}
	case "text/html":
		if cm.BodyHTML == "" {
			cm.BodyHTML = string(content)
		}
	}
	return nil
}
