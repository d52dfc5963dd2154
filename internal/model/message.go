package model

import "time"

// CanonicalMessage is the normalized, never-persisted-alone representation
// of a remote message produced by the mail fetcher (spec §3). MessageID is
// the dedupe key the whole pipeline keys off of.
type CanonicalMessage struct {
	UID       uint32
	MessageID string
	Subject   string
	From      string
	To        []string
	CC        []string
	BCC       []string
	Date      time.Time
	BodyText  string
	BodyHTML  string
	Flags     []string
}

// Attachment describes an attachment's metadata. CanonicalMessage has no
// attachment field and the fetcher skips attachment parts, so no value of
// this type is populated anywhere in this repo.
type Attachment struct {
	Filename string
	MIMEType string
	Size     int64
}
