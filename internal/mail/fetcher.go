package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap"

	"smart-mail-relay-go/internal/apperrors"
	"smart-mail-relay-go/internal/metrics"
	"smart-mail-relay-go/internal/model"
)

// FetchOptions narrows fetchEmails (spec §4.3).
type FetchOptions struct {
	Folder string // defaults to INBOX
	Since  *time.Time
	Before *time.Time
	Limit  int
}

// Fetcher is the abstract collaborator spec §4.3 names.
type Fetcher interface {
	TestConnection(ctx context.Context, accountID string) (bool, string, error)
	FetchEmails(ctx context.Context, accountID string, opts FetchOptions) ([]model.CanonicalMessage, error)
	CloseConnection(accountID string) error
}

// IMAPFetcher is the default, pool-backed Fetcher. Grounded on the teacher's
// IMAPFetcher (fetcher.go) — envelope/UID/body fetch shape and go-message
// multipart walk — generalized to a pooled, per-account, UID-ranged fetch
// instead of a single hardcoded "since last check" account.
type IMAPFetcher struct {
	pool         *Pool
	fetchTimeout time.Duration
	metrics      *metrics.Metrics
}

func NewIMAPFetcher(pool *Pool, fetchTimeout time.Duration, m *metrics.Metrics) *IMAPFetcher {
	return &IMAPFetcher{pool: pool, fetchTimeout: fetchTimeout, metrics: m}
}

func (f *IMAPFetcher) TestConnection(ctx context.Context, accountID string) (bool, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	c, release, err := f.pool.Acquire(ctx, accountID)
	if err != nil {
		return false, err.Error(), err
	}
	defer release()

	if _, err := c.Select("INBOX", true); err != nil {
		return false, err.Error(), apperrors.New(apperrors.Transient, "mail.TestConnection", err)
	}
	f.pool.touch(accountID)
	return true, "ok", nil
}

func (f *IMAPFetcher) CloseConnection(accountID string) error {
	return f.pool.CloseConnection(accountID)
}

// FetchEmails opens opts.Folder (default INBOX) read-only, selects UIDs in
// [since, before), fetches envelope+flags+body for each, and parses MIME
// into CanonicalMessage. If the fetch is interrupted after some messages
// were parsed, those messages are returned with a nil error; the error
// surfaces only if no message was returned.
func (f *IMAPFetcher) FetchEmails(ctx context.Context, accountID string, opts FetchOptions) ([]model.CanonicalMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()

	c, release, err := f.pool.Acquire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	folder := opts.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := c.Select(folder, true); err != nil {
		return nil, apperrors.New(apperrors.Transient, "mail.FetchEmails", fmt.Errorf("select %s: %w", folder, err))
	}

	criteria := imap.NewSearchCriteria()
	if opts.Since != nil {
		criteria.Since = *opts.Since
	}
	if opts.Before != nil {
		criteria.Before = *opts.Before
	}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, apperrors.New(apperrors.Transient, "mail.FetchEmails", fmt.Errorf("uid search: %w", err))
	}
	if len(uids) == 0 {
		return []model.CanonicalMessage{}, nil
	}
	if opts.Limit > 0 && len(uids) > opts.Limit {
		uids = uids[:opts.Limit]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchFlags, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var (
		canonical []model.CanonicalMessage
		parseErrs []error
	)
	for msg := range messages {
		cm, err := parseMessage(msg, section)
		if err != nil {
			parseErrs = append(parseErrs, apperrors.New(apperrors.Permanent, "mail.parseMessage", err))
			continue
		}
		canonical = append(canonical, cm)
	}

	fetchErr := <-done
	f.pool.touch(accountID)
	if f.metrics != nil {
		f.metrics.MessagesFetched.Add(float64(len(canonical)))
	}

	if fetchErr != nil {
		if len(canonical) > 0 {
			return canonical, nil
		}
		return nil, apperrors.New(apperrors.Transient, "mail.FetchEmails", fmt.Errorf("uid fetch: %w", fetchErr))
	}
	if len(parseErrs) > 0 && len(canonical) == 0 {
		return nil, parseErrs[0]
	}
	return canonical, nil
}
