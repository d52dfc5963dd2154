package mail

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// ConfigAccountProvider resolves accounts from a static, config-file-loaded
// list. Real credential storage lives outside this module (spec §1); this
// is the default adapter cmd/api wires in when no other AccountProvider is
// supplied.
type ConfigAccountProvider struct {
	accounts map[string]*Account
}

// AccountSpec is the shape cmd/api builds from config.IMAPAccountConfig,
// kept independent of the config package so mail has no import on it.
type AccountSpec struct {
	ID         string
	Host       string
	Port       int
	Username   string
	AuthMethod string
	Password   string

	OAuth2ClientID     string
	OAuth2ClientSecret string
	OAuth2RefreshToken string
	OAuth2TokenURL     string
}

// NewConfigAccountProvider builds the in-memory lookup table and, for
// OAuth2 accounts, refreshes an initial access token eagerly so the first
// pool dial doesn't pay that latency mid-fetch.
func NewConfigAccountProvider(ctx context.Context, specs []AccountSpec) (*ConfigAccountProvider, error) {
	accounts := make(map[string]*Account, len(specs))
	for _, s := range specs {
		account := &Account{
			ID:         s.ID,
			Host:       s.Host,
			Port:       s.Port,
			Username:   s.Username,
			AuthMethod: AuthMethod(s.AuthMethod),
			Password:   s.Password,
		}
		if account.AuthMethod == "" {
			account.AuthMethod = AuthPassword
		}

		if account.AuthMethod == AuthOAuth2 {
			cfg := &oauth2.Config{
				ClientID:     s.OAuth2ClientID,
				ClientSecret: s.OAuth2ClientSecret,
				Endpoint:     oauth2.Endpoint{TokenURL: s.OAuth2TokenURL},
			}
			token, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: s.OAuth2RefreshToken}).Token()
			if err != nil {
				return nil, fmt.Errorf("mail: refreshing oauth2 token for account %s: %w", s.ID, err)
			}
			account.OAuth2Config = cfg
			account.OAuth2Token = token
		}

		accounts[s.ID] = account
	}
	return &ConfigAccountProvider{accounts: accounts}, nil
}

func (p *ConfigAccountProvider) GetAccount(accountID string) (*Account, error) {
	account, ok := p.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("mail: unknown account %q", accountID)
	}
	return account, nil
}
