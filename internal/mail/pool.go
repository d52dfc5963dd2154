package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/sirupsen/logrus"

	"smart-mail-relay-go/internal/apperrors"
	"smart-mail-relay-go/internal/metrics"
)

// Pool caches at most one live IMAP session per accountId (spec §4.4). Each
// session has its own 1-slot semaphore ("connection slot") so an execution
// holding an account's connection blocks out other executions for the same
// account rather than racing on the same *client.Client.
type Pool struct {
	accounts AccountProvider
	metrics  *metrics.Metrics

	connectTimeout  time.Duration
	healthFreshness time.Duration
	acquireTimeout  time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// session's slot is a 1-buffered semaphore rather than a sync.Mutex: Acquire
// must be able to give up waiting on a timeout or ctx cancellation without
// leaving a goroutine permanently parked on the lock, which would wedge the
// slot forever the instant the current holder released it.
type session struct {
	slot        chan struct{}
	client      *client.Client
	lastSuccess time.Time
}

func newSession() *session {
	s := &session{slot: make(chan struct{}, 1)}
	s.slot <- struct{}{}
	return s
}

func NewPool(accounts AccountProvider, m *metrics.Metrics, connectTimeout, healthFreshness, acquireTimeout time.Duration) *Pool {
	return &Pool{
		accounts:        accounts,
		metrics:         m,
		connectTimeout:  connectTimeout,
		healthFreshness: healthFreshness,
		acquireTimeout:  acquireTimeout,
		sessions:        make(map[string]*session),
	}
}

// Acquire returns a locked, healthy IMAP client for accountID and a release
// function the caller must call exactly once. Blocks up to acquireTimeout if
// another execution currently holds this account's slot.
func (p *Pool) Acquire(ctx context.Context, accountID string) (*client.Client, func(), error) {
	sess := p.sessionFor(accountID)

	select {
	case <-sess.slot:
	case <-time.After(p.acquireTimeout):
		return nil, nil, apperrors.Transientf("mail.Pool.Acquire", "timed out waiting for IMAP slot for account %s", accountID)
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	if err := p.ensureHealthyLocked(ctx, accountID, sess, time.Now()); err != nil {
		sess.slot <- struct{}{}
		return nil, nil, err
	}

	release := func() { sess.slot <- struct{}{} }
	return sess.client, release, nil
}

func (p *Pool) sessionFor(accountID string) *session {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[accountID]
	if !ok {
		sess = newSession()
		p.sessions[accountID] = sess
	}
	return sess
}

// ensureHealthyLocked dials/logs in a fresh session if none exists or the
// existing one's last successful command is older than healthFreshness.
// Caller must already hold sess.slot.
func (p *Pool) ensureHealthyLocked(ctx context.Context, accountID string, sess *session, asOf time.Time) error {
	if sess.client != nil && asOf.Sub(sess.lastSuccess) <= p.healthFreshness {
		return nil
	}
	if sess.client != nil {
		_ = sess.client.Logout()
		sess.client = nil
	}

	account, err := p.accounts.GetAccount(accountID)
	if err != nil {
		return apperrors.New(apperrors.Permanent, "mail.Pool.ensureHealthy", err)
	}

	c, err := p.dial(ctx, account)
	if p.metrics != nil {
		p.metrics.IMAPDialsTotal.Inc()
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.IMAPDialFailures.Inc()
		}
		return err
	}

	sess.client = c
	sess.lastSuccess = time.Now()
	return nil
}

func (p *Pool) dial(ctx context.Context, account *Account) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", account.Host, account.Port)

	dialDone := make(chan struct{})
	var c *client.Client
	var dialErr error
	go func() {
		c, dialErr = client.DialTLS(addr, nil)
		close(dialDone)
	}()

	select {
	case <-dialDone:
	case <-time.After(p.connectTimeout):
		return nil, apperrors.Transientf("mail.Pool.dial", "connect to %s timed out after %s", addr, p.connectTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if dialErr != nil {
		return nil, apperrors.New(apperrors.Transient, "mail.Pool.dial", dialErr)
	}

	if err := p.authenticate(c, account); err != nil {
		_ = c.Logout()
		return nil, err
	}
	return c, nil
}

func (p *Pool) authenticate(c *client.Client, account *Account) error {
	switch account.AuthMethod {
	case AuthOAuth2:
		if account.OAuth2Token == nil {
			return apperrors.New(apperrors.Permanent, "mail.Pool.authenticate", fmt.Errorf("account %s: AuthOAuth2 requires an OAuth2Token", account.ID))
		}
		saslClient := sasl.NewXoauth2Client(account.Username, account.OAuth2Token.AccessToken)
		if err := c.Authenticate(saslClient); err != nil {
			return apperrors.New(apperrors.Permanent, "mail.Pool.authenticate", err)
		}
	case AuthPassword, "":
		if err := c.Login(account.Username, account.Password); err != nil {
			return apperrors.New(apperrors.Permanent, "mail.Pool.authenticate", err)
		}
	default:
		return apperrors.New(apperrors.Permanent, "mail.Pool.authenticate", fmt.Errorf("account %s: unknown auth method %q", account.ID, account.AuthMethod))
	}
	return nil
}

// touch marks the pooled session for accountID as having just completed a
// successful command, refreshing the health freshness window. It does not
// release the session's slot; callers still call the func Acquire returned.
func (p *Pool) touch(accountID string) {
	p.mu.Lock()
	sess, ok := p.sessions[accountID]
	p.mu.Unlock()
	if ok {
		sess.lastSuccess = time.Now()
	}
}

// CloseConnection releases and logs out the pooled session for accountID, if any.
func (p *Pool) CloseConnection(accountID string) error {
	p.mu.Lock()
	sess, ok := p.sessions[accountID]
	if ok {
		delete(p.sessions, accountID)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	<-sess.slot
	defer func() { sess.slot <- struct{}{} }()
	if sess.client == nil {
		return nil
	}
	err := sess.client.Logout()
	sess.client = nil
	if err != nil {
		logrus.WithError(err).WithField("accountId", accountID).Warn("imap logout failed during closeConnection")
	}
	return nil
}

// CloseAll tears down every pooled session, best-effort.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	for _, id := range ids {
		_ = p.CloseConnection(id)
	}
}
