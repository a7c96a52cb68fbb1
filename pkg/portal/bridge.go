package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// PortalTokenTTL is the fixed lifetime of a portal token, measured from the
// moment a satellite receives it.
const PortalTokenTTL = 24 * time.Hour

// Bridge bootstraps a satellite application into the federated session. It
// consumes the portal_token redirect parameter once per boot, persists it,
// and reconciles the local account record in the background. Account sync
// is best effort: its failure is logged and swallowed, never allowed to
// block the user's navigation.
type Bridge struct {
	store       TokenStore
	client      Client
	appID       string
	loginURL    string
	logger      *slog.Logger
	now         func() time.Time
	syncTimeout time.Duration
	wg          sync.WaitGroup
}

// NewBridge creates a bridge for one satellite application. loginURL is the
// canonical portal login page used when no token is present.
func NewBridge(store TokenStore, client Client, appID, loginURL string, logger *slog.Logger) *Bridge {
	return &Bridge{
		store:       store,
		client:      client,
		appID:       appID,
		loginURL:    loginURL,
		logger:      logger,
		now:         time.Now,
		syncTimeout: 10 * time.Second,
	}
}

// Bootstrap processes the boot-time query parameters and returns the URL to
// navigate to. With a portal_token present the token is persisted, a
// background sync is fired, and the redirect target is returned regardless
// of how that sync ends. Without one, the portal login URL is returned with
// the intended destination preserved as the return path.
func (b *Bridge) Bootstrap(ctx context.Context, query url.Values) string {
	target := query.Get("redirect")
	if target == "" {
		target = "/"
	}

	tokenValue := query.Get("portal_token")
	if tokenValue == "" {
		return b.loginRedirect(target)
	}

	token := &Token{
		Value:     tokenValue,
		ExpiresAt: b.now().Add(PortalTokenTTL),
		Connected: true,
		Synced:    false,
	}
	if err := b.store.Set(ctx, token); err != nil {
		b.logger.Error("failed to persist portal token", slog.Any("error", err))
		return target
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.syncAccount(tokenValue)
	}()

	return target
}

// syncAccount exchanges the portal token for a scoped session and upserts
// this application's account record. Every failure path degrades to a
// disconnected-looking state; none of them surface to the caller.
func (b *Bridge) syncAccount(tokenValue string) {
	ctx, cancel := context.WithTimeout(context.Background(), b.syncTimeout)
	defer cancel()

	session, err := b.client.ExchangePortalToken(ctx, tokenValue, b.appID)
	if err != nil {
		b.logger.Warn("portal token exchange failed, account sync skipped",
			slog.String("app_id", b.appID), slog.Any("error", err))
		return
	}

	if err := b.client.SyncAccount(ctx, session.AccessToken, b.appID); err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			// Another sync for this app is already running and will set
			// the synced flag itself.
			return
		}
		b.logger.Warn("portal account sync failed",
			slog.String("app_id", b.appID), slog.Any("error", err))
		return
	}

	token, err := b.store.Get(ctx)
	if err != nil || token == nil || token.Value != tokenValue {
		return
	}
	token.Synced = true
	if err := b.store.Set(ctx, token); err != nil {
		b.logger.Warn("failed to mark portal token synced", slog.Any("error", err))
	}
}

// Connected reports whether a live portal token is present. An expired
// token reads as absent, so this degrades to false on its own.
func (b *Bridge) Connected(ctx context.Context) bool {
	token, err := b.store.Get(ctx)
	return err == nil && token != nil && token.Connected
}

// Logout drops the persisted token so every component sees the
// disconnected state.
func (b *Bridge) Logout(ctx context.Context) error {
	return b.store.Clear(ctx)
}

// Flush waits for any in-flight background sync. Shutdown and tests use it.
func (b *Bridge) Flush() {
	b.wg.Wait()
}

func (b *Bridge) loginRedirect(target string) string {
	u, err := url.Parse(b.loginURL)
	if err != nil {
		return b.loginURL
	}
	q := u.Query()
	q.Set("redirect", target)
	u.RawQuery = q.Encode()
	return u.String()
}
