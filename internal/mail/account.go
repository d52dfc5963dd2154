// Package mail is the remote-mailbox boundary: fetcher (spec §4.3) and
// connection pool (spec §4.4). Grounded on the teacher's fetcher.go /
// internal/service/mail_service.go (emersion/go-imap + go-message parsing),
// generalized from a single hardcoded Gmail account to a pool keyed by
// accountId, and from Gmail-API-or-IMAP to IMAP-only per spec §4.3.
package mail

import "golang.org/x/oauth2"

// AuthMethod distinguishes how an Account authenticates to its IMAP server.
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthOAuth2   AuthMethod = "oauth2"
)

// Account is the per-mailbox connection recipe. Credential storage itself is
// an out-of-scope external collaborator (spec §1); this repo only consumes
// it through AccountProvider.
type Account struct {
	ID       string
	Host     string
	Port     int
	Username string

	AuthMethod AuthMethod
	Password   string // AuthPassword

	OAuth2Token  *oauth2.Token  // AuthOAuth2: XOAUTH2 SASL
	OAuth2Config *oauth2.Config // used to refresh OAuth2Token when expired
}

// AccountProvider resolves an accountId to its connection recipe. The
// concrete implementation (credential storage) lives outside this module.
type AccountProvider interface {
	GetAccount(accountID string) (*Account, error)
}
