// Package oauth owns the Square OAuth connection lifecycle: the authorize
// redirect, the callback exchange, proactive refresh, disconnect and the
// auth-failure flag.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/oauthstate"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/vault"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/config"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/prometheus"

	"go.uber.org/zap"
)

// ErrNotConfigured means the deployment has no Square application
// credentials, so the connect flow cannot start.
var ErrNotConfigured = errors.New("oauth: square application credentials not configured")

// Callback failure reasons surfaced to the frontend redirect.
const (
	ReasonInvalidState        = "invalid_state"
	ReasonRestaurantNotFound  = "restaurant_not_found"
	ReasonTokenExchangeFailed = "token_exchange_failed"
)

// CallbackError carries a stable reason string for the frontend redirect.
type CallbackError struct {
	Reason string
	Err    error
}

func (e *CallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth callback: %s: %v", e.Reason, e.Err)
	}
	return "oauth callback: " + e.Reason
}

func (e *CallbackError) Unwrap() error { return e.Err }

// Scopes requested from Square on connect.
var squareScopes = []string{
	"MERCHANT_PROFILE_READ",
	"ITEMS_READ",
	"ITEMS_WRITE",
	"ORDERS_READ",
	"ORDERS_WRITE",
	"PAYMENTS_READ",
}

// refreshWindow is how close to expiry a token gets refreshed.
const refreshWindow = 5 * time.Minute

// Lifecycle implements the Square connection state machine. It is also the
// AuthFailureReporter handed to outbound clients.
type Lifecycle struct {
	cfg    config.SquareConfig
	store  store.Store
	vault  *vault.Vault
	states *oauthstate.Codec
	logger *zap.Logger

	httpClient *http.Client
	baseURL    string
	now        func() time.Time
}

// New builds a Lifecycle from the deployment configuration.
func New(cfg config.SquareConfig, st store.Store, v *vault.Vault, states *oauthstate.Codec, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		cfg:        cfg,
		store:      st,
		vault:      v,
		states:     states,
		logger:     logger,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    cfg.BaseURL(),
		now:        time.Now,
	}
}

// AuthorizeURL builds the Square authorize redirect for a restaurant.
func (l *Lifecycle) AuthorizeURL(ctx context.Context, restaurantID string) (string, error) {
	if l.cfg.ApplicationID == "" || l.cfg.ApplicationSecret == "" {
		return "", ErrNotConfigured
	}
	if _, err := l.store.GetRestaurant(ctx, restaurantID); err != nil {
		return "", err
	}
	state, err := l.states.Encode(restaurantID)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("client_id", l.cfg.ApplicationID)
	q.Set("scope", strings.Join(squareScopes, " "))
	q.Set("session", "false")
	q.Set("state", state)
	if l.cfg.RedirectURI != "" {
		q.Set("redirect_uri", l.cfg.RedirectURI)
	}
	return l.baseURL + "/oauth2/authorize?" + q.Encode(), nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
	MerchantID   string `json:"merchant_id"`
}

// HandleCallback exchanges the authorization code, stores the credentials
// and marks the restaurant connected. Failures carry a stable reason string.
func (l *Lifecycle) HandleCallback(ctx context.Context, state, code string) (*model.Restaurant, error) {
	restaurantID, err := l.states.Decode(state)
	if err != nil {
		prometheus.RecordOAuthConnect("invalid_state")
		return nil, &CallbackError{Reason: ReasonInvalidState, Err: err}
	}
	r, err := l.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		prometheus.RecordOAuthConnect("restaurant_not_found")
		return nil, &CallbackError{Reason: ReasonRestaurantNotFound, Err: err}
	}

	tok, err := l.exchange(ctx, map[string]string{
		"client_id":     l.cfg.ApplicationID,
		"client_secret": l.cfg.ApplicationSecret,
		"code":          code,
		"grant_type":    "authorization_code",
		"redirect_uri":  l.cfg.RedirectURI,
	})
	if err != nil {
		prometheus.RecordOAuthConnect("exchange_failed")
		return nil, &CallbackError{Reason: ReasonTokenExchangeFailed, Err: err}
	}

	r.POSProvider = model.ProviderSquare
	r.POSMerchantID = tok.MerchantID
	r.POSConnected = true
	if exp, err := time.Parse(time.RFC3339, tok.ExpiresAt); err == nil {
		r.POSTokenExpiresAt = &exp
	}
	if err := l.vault.Set(ctx, r, vault.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
		MerchantID:   tok.MerchantID,
	}); err != nil {
		return nil, err
	}

	// Location discovery is best effort; the connection stands without it.
	if locID, err := l.fetchMainLocation(ctx, tok.AccessToken); err != nil {
		l.logger.Warn("square location discovery failed",
			zap.String("restaurant_id", r.ID), zap.Error(err))
	} else if locID != "" {
		r.POSLocationID = locID
		if err := l.store.SaveRestaurant(ctx, r); err != nil {
			return nil, err
		}
	}

	prometheus.RecordOAuthConnect("success")
	l.logger.Info("square connected",
		zap.String("restaurant_id", r.ID), zap.String("merchant_id", tok.MerchantID))
	return r, nil
}

// EnsureFresh refreshes the access token when it expires within the refresh
// window. Refresh failures are logged and swallowed; the stale token is
// still returned and the next 401 will flag the connection.
func (l *Lifecycle) EnsureFresh(ctx context.Context, r *model.Restaurant) (vault.Credentials, error) {
	creds, err := l.vault.Get(r)
	if err != nil {
		return vault.Credentials{}, err
	}
	if r.POSProvider != model.ProviderSquare || creds.RefreshToken == "" {
		return creds, nil
	}
	if r.POSTokenExpiresAt == nil || l.now().Add(refreshWindow).Before(*r.POSTokenExpiresAt) {
		return creds, nil
	}

	tok, err := l.exchange(ctx, map[string]string{
		"client_id":     l.cfg.ApplicationID,
		"client_secret": l.cfg.ApplicationSecret,
		"refresh_token": creds.RefreshToken,
		"grant_type":    "refresh_token",
	})
	if err != nil {
		prometheus.RecordOAuthRefresh("failed")
		l.logger.Warn("square token refresh failed",
			zap.String("restaurant_id", r.ID), zap.Error(err))
		return creds, nil
	}

	creds.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		creds.RefreshToken = tok.RefreshToken
	}
	creds.ExpiresAt = tok.ExpiresAt
	if exp, err := time.Parse(time.RFC3339, tok.ExpiresAt); err == nil {
		r.POSTokenExpiresAt = &exp
	}
	if err := l.vault.Set(ctx, r, creds); err != nil {
		return vault.Credentials{}, err
	}
	prometheus.RecordOAuthRefresh("success")
	l.logger.Info("square token refreshed", zap.String("restaurant_id", r.ID))
	return creds, nil
}

// Disconnect revokes the token best effort, then clears local credentials
// unconditionally so a failed revoke never leaves a half-connected tenant.
func (l *Lifecycle) Disconnect(ctx context.Context, r *model.Restaurant) error {
	if creds, err := l.vault.Get(r); err == nil && creds.AccessToken != "" {
		if err := l.revoke(ctx, creds.AccessToken); err != nil {
			l.logger.Warn("square token revoke failed",
				zap.String("restaurant_id", r.ID), zap.Error(err))
		}
	}

	r.POSProvider = model.ProviderNone
	r.POSMerchantID = ""
	r.POSLocationID = ""
	r.POSTokenExpiresAt = nil
	r.POSConnected = false
	if err := l.vault.Clear(ctx, r); err != nil {
		return err
	}
	prometheus.RecordOAuthDisconnect()
	l.logger.Info("pos disconnected", zap.String("restaurant_id", r.ID))
	return nil
}

// MarkAuthFailed flips the connected flag off after a provider 401. It is
// the only writer that sets POSConnected to false outside Disconnect.
func (l *Lifecycle) MarkAuthFailed(ctx context.Context, restaurantID string, provider model.POSProvider, detail string) {
	r, err := l.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		l.logger.Error("cannot flag auth failure",
			zap.String("restaurant_id", restaurantID), zap.Error(err))
		return
	}
	if !r.POSConnected {
		return
	}
	r.POSConnected = false
	if err := l.store.SaveRestaurant(ctx, r); err != nil {
		l.logger.Error("cannot persist auth failure flag",
			zap.String("restaurant_id", restaurantID), zap.Error(err))
		return
	}
	l.logger.Warn("pos auth failed, connection flagged",
		zap.String("restaurant_id", restaurantID),
		zap.String("provider", string(provider)),
		zap.String("detail", detail))
}

func (l *Lifecycle) exchange(ctx context.Context, form map[string]string) (*tokenResponse, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/oauth2/token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Square-Version", l.cfg.APIVersion)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, respBody)
	}
	var tok tokenResponse
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access token")
	}
	return &tok, nil
}

func (l *Lifecycle) revoke(ctx context.Context, accessToken string) error {
	body, err := json.Marshal(map[string]string{
		"client_id":    l.cfg.ApplicationID,
		"access_token": accessToken,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/oauth2/revoke", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Client "+l.cfg.ApplicationSecret)
	req.Header.Set("Square-Version", l.cfg.APIVersion)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("revoke endpoint returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

func (l *Lifecycle) fetchMainLocation(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/v2/locations", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Square-Version", l.cfg.APIVersion)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("locations endpoint returned %d", resp.StatusCode)
	}
	var out struct {
		Locations []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"locations"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	for _, loc := range out.Locations {
		if loc.Status == "ACTIVE" {
			return loc.ID, nil
		}
	}
	if len(out.Locations) > 0 {
		return out.Locations[0].ID, nil
	}
	return "", nil
}
