package broker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"RSITrader/internal/clock"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Refresh margins ahead of token expiry.
const (
	AccessMargin  = 2 * time.Minute
	RefreshMargin = 10 * 24 * time.Hour
)

// Credentials is the persisted token pair with their issue times.
type Credentials struct {
	AccessToken   string    `yaml:"access_token"`
	AccessIssued  time.Time `yaml:"access_issued"`
	RefreshToken  string    `yaml:"refresh_token"`
	RefreshIssued time.Time `yaml:"refresh_issued"`
}

// Authenticator performs the token grant requests.
type Authenticator interface {
	RefreshAccess(ctx context.Context, refresh string) (string, error)
	RenewRefresh(ctx context.Context, refresh string) (access, newRefresh string, err error)
}

// TokenManager keeps the access and refresh tokens current and persisted.
type TokenManager struct {
	mu         sync.Mutex
	path       string
	creds      Credentials
	auth       Authenticator
	clock      clock.Clock
	accessTTL  time.Duration
	refreshTTL time.Duration
	ioDelay    time.Duration
	log        *logrus.Entry
}

// LoadTokenManager reads credentials from path. The file must carry a refresh token.
func LoadTokenManager(path string, auth Authenticator, clk clock.Clock, accessTTL, refreshTTL, ioDelay time.Duration, log *logrus.Entry) (*TokenManager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.RefreshToken == "" {
		return nil, fmt.Errorf("credentials %s: refresh_token is required", path)
	}
	return &TokenManager{
		path:       path,
		creds:      creds,
		auth:       auth,
		clock:      clk,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		ioDelay:    ioDelay,
		log:        log,
	}, nil
}

// AccessToken returns the current bearer token.
func (m *TokenManager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds.AccessToken
}

// Ensure renews the refresh token when it nears expiry, otherwise refreshes
// the access token when it nears expiry. Renewed credentials are saved.
func (m *TokenManager) Ensure(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	switch {
	case now.Sub(m.creds.RefreshIssued) > m.refreshTTL-RefreshMargin:
		access, refresh, err := m.auth.RenewRefresh(ctx, m.creds.RefreshToken)
		if err != nil {
			return fmt.Errorf("renew refresh token: %w", err)
		}
		m.creds.AccessToken, m.creds.AccessIssued = access, now
		m.creds.RefreshToken, m.creds.RefreshIssued = refresh, now
		m.log.Info("refresh token renewed")
	case m.creds.AccessToken == "" || now.Sub(m.creds.AccessIssued) > m.accessTTL-AccessMargin:
		access, err := m.auth.RefreshAccess(ctx, m.creds.RefreshToken)
		if err != nil {
			return fmt.Errorf("refresh access token: %w", err)
		}
		m.creds.AccessToken, m.creds.AccessIssued = access, now
		m.log.Debug("access token refreshed")
	default:
		return nil
	}
	return m.save(ctx)
}

func (m *TokenManager) save(ctx context.Context) error {
	data, err := yaml.Marshal(m.creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return m.clock.Sleep(ctx, m.ioDelay)
}
