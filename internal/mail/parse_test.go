package mail

import (
	"strings"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-mail-relay-go/internal/model"
)

func buildEntity(t *testing.T, raw string) *message.Entity {
	t.Helper()
	entity, err := message.Read(strings.NewReader(raw))
	require.NoError(t, err)
	return entity
}

func TestWalkParts_PlainTextOnly(t *testing.T) {
	raw := "Content-Type: text/plain; charset=utf-8\r\n\r\nhello world\r\n"
	entity := buildEntity(t, raw)

	var cm model.CanonicalMessage
	require.NoError(t, walkParts(entity, &cm))
	assert.Equal(t, "hello world\r\n", cm.BodyText)
	assert.Empty(t, cm.BodyHTML)
}

func TestWalkParts_Multipart(t *testing.T) {
	raw := "Content-Type: multipart/alternative; boundary=BOUNDARY\r\n\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"plain body\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html\r\n\r\n" +
		"<p>html body</p>\r\n" +
		"--BOUNDARY--\r\n"
	entity := buildEntity(t, raw)

	var cm model.CanonicalMessage
	require.NoError(t, walkParts(entity, &cm))
	assert.Equal(t, "plain body", cm.BodyText)
	assert.Equal(t, "<p>html body</p>", cm.BodyHTML)
}

func TestWalkParts_SkipsAttachments(t *testing.T) {
	raw := "Content-Type: multipart/mixed; boundary=BOUNDARY\r\n\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"body text\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: application/pdf\r\n" +
		"Content-Disposition: attachment; filename=\"invoice.pdf\"\r\n\r\n" +
		"%PDF-1.4 binary stuff\r\n" +
		"--BOUNDARY--\r\n"
	entity := buildEntity(t, raw)

	var cm model.CanonicalMessage
	require.NoError(t, walkParts(entity, &cm))
	assert.Equal(t, "body text", cm.BodyText)
}

func TestParseMessage_MissingMessageIDFallsBackToSynthetic(t *testing.T) {
	msg := &imap.Message{
		Uid:      42,
		Envelope: &imap.Envelope{Subject: "no message-id here"},
	}
	// No body section present -> expect an error but a partially-filled CanonicalMessage.
	cm, err := parseMessage(msg, &imap.BodySectionName{})
	require.Error(t, err)
	assert.Contains(t, cm.MessageID, "uid-42-")
}
