package pacer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docketwatch/docketwatch/internal/config"
	"github.com/docketwatch/docketwatch/internal/logging"
	"github.com/docketwatch/docketwatch/internal/metrics"
)

// AuthStatus tags the outcome of an authentication attempt. Callers switch
// on the status instead of unwrapping exceptions.
type AuthStatus string

const (
	AuthSuccess            AuthStatus = "success"
	AuthMFARequired        AuthStatus = "mfa_required"
	AuthInvalidCredentials AuthStatus = "invalid_credentials"
	AuthRateLimited        AuthStatus = "rate_limited"
	AuthTransientError     AuthStatus = "transient_error"
)

// AuthOutcome is the tagged result of Authenticate.
type AuthOutcome struct {
	Status      AuthStatus    `json:"status"`
	Token       string        `json:"-"`
	Cached      bool          `json:"cached"`
	Warning     string        `json:"warning,omitempty"`
	Message     string        `json:"message,omitempty"`
	Environment string        `json:"environment"`
	RetryAfter  time.Duration `json:"retry_after,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// AuthRequest carries one authentication attempt.
type AuthRequest struct {
	Identity     string
	Username     string
	Password     string
	ClientCode   string
	OTP          string
	ForceRefresh bool
}

// loginResponse mirrors the external auth endpoint's wire format. The
// loginResult field arrives as a string or a number depending on the
// server-side path, so it is decoded loosely and normalized.
type loginResponse struct {
	LoginResult      any    `json:"loginResult"`
	NextGenCSO       string `json:"nextGenCSO"`
	ErrorDescription string `json:"errorDescription"`
}

// parseLoginResult normalizes the third-party success sentinel. The API
// signals "no error" with the literal code "0", which may arrive as a
// string (possibly padded), a JSON number, or be absent entirely. Absence
// is failure. This is the sole source of truth for handshake success; the
// human-readable message is never consulted.
func parseLoginResult(raw any) bool {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v) == "0"
	case float64:
		return v == 0
	case int:
		return v == 0
	case json.Number:
		return strings.TrimSpace(v.String()) == "0"
	default:
		return false
	}
}

// mfaIndicated reports whether a failed handshake is actually an MFA
// challenge rather than bad credentials.
func mfaIndicated(resp loginResponse) bool {
	msg := strings.ToLower(resp.ErrorDescription)
	for _, marker := range []string{"second factor", "two factor", "two-factor", "otp", "one-time passcode"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Authenticator drives the login handshake against the external auth
// service, fronted by the rate limiter and token cache.
type Authenticator struct {
	client      *http.Client
	authURL     string
	probeURL    string
	environment string
	cache       *TokenCache
	limiter     *RateLimiter
	policy      RetryPolicy
	collector   *metrics.Collector
	logger      *slog.Logger
}

// NewAuthenticator wires an authenticator from configuration. collector may
// be nil when metrics are not wanted (tests).
func NewAuthenticator(cfg config.PACERConfig, cache *TokenCache, limiter *RateLimiter, collector *metrics.Collector, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		client:      &http.Client{Timeout: cfg.RequestTimeout},
		authURL:     cfg.AuthURL,
		probeURL:    cfg.SearchURL + "/courts",
		environment: cfg.Environment,
		cache:       cache,
		limiter:     limiter,
		policy:      DefaultRetryPolicy(),
		collector:   collector,
		logger:      logger,
	}
}

// SetRetryPolicy overrides the default backoff settings.
func (a *Authenticator) SetRetryPolicy(policy RetryPolicy) {
	a.policy = policy
}

func (a *Authenticator) observe(status string) {
	if a.collector != nil {
		a.collector.ObservePACERRequest("auth", status)
	}
}

func (a *Authenticator) observeRetry() {
	if a.collector != nil {
		a.collector.ObservePACERRetry("auth")
	}
}

// Authenticate runs the full state machine: rate-limit check, cache probe,
// handshake, cache fill, counter reset. The returned outcome is tagged; an
// error is returned only for unexpected failures alongside a transient
// outcome.
func (a *Authenticator) Authenticate(ctx context.Context, req AuthRequest) (AuthOutcome, error) {
	now := time.Now()

	if err := a.limiter.Check(ctx, req.Identity); err != nil {
		var limited *RateLimitedError
		if errors.As(err, &limited) {
			a.logger.Warn("authentication rate limited",
				"username", logging.MaskUsername(req.Username),
				"retry_after", limited.RetryAfter,
			)
			return AuthOutcome{
				Status:      AuthRateLimited,
				Message:     limited.Error(),
				RetryAfter:  limited.RetryAfter,
				Environment: a.environment,
				Timestamp:   now,
			}, nil
		}
		return AuthOutcome{Status: AuthTransientError, Environment: a.environment, Timestamp: now}, err
	}

	if !req.ForceRefresh {
		if token, ok := a.cache.Get(ctx, req.Identity); ok {
			if a.validateToken(ctx, token) {
				a.logger.Debug("serving cached session token",
					"username", logging.MaskUsername(req.Username),
				)
				return AuthOutcome{
					Status:      AuthSuccess,
					Token:       token,
					Cached:      true,
					Environment: a.environment,
					Timestamp:   now,
				}, nil
			}
			// Self-heal: the external system expired the session early.
			a.cache.Invalidate(ctx, req.Identity)
		}
	}

	return a.handshake(ctx, req, now)
}

func (a *Authenticator) handshake(ctx context.Context, req AuthRequest, now time.Time) (AuthOutcome, error) {
	payload := map[string]string{
		"loginId":    req.Username,
		"password":   req.Password,
		"redactFlag": "1",
	}
	if req.ClientCode != "" {
		payload["clientCode"] = req.ClientCode
	}
	if req.OTP != "" {
		payload["twoFactorCode"] = req.OTP
	}

	a.logger.Info("performing authentication handshake",
		"username", logging.MaskUsername(req.Username),
		"environment", a.environment,
		"mfa", req.OTP != "",
	)

	var resp loginResponse
	var rateLimitHit *RateLimitedError

	err := Retry(ctx, a.policy, a.observeRetry, func() error {
		r, err := a.postLogin(ctx, payload)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})

	if err != nil {
		if errors.As(err, &rateLimitHit) {
			a.observe("rate_limited")
			return AuthOutcome{
				Status:      AuthRateLimited,
				Message:     rateLimitHit.Error(),
				RetryAfter:  rateLimitHit.RetryAfter,
				Environment: a.environment,
				Timestamp:   now,
			}, nil
		}

		a.observe("error")
		a.logger.Error("authentication handshake failed",
			"username", logging.MaskUsername(req.Username),
			"error", err,
		)
		return AuthOutcome{
			Status:      AuthTransientError,
			Message:     "authentication service unreachable",
			Environment: a.environment,
			Timestamp:   now,
		}, &AuthError{Err: err}
	}

	if parseLoginResult(resp.LoginResult) {
		a.observe("success")
		a.cache.Store(ctx, req.Identity, resp.NextGenCSO)
		a.limiter.Record(ctx, req.Identity, true)

		outcome := AuthOutcome{
			Status:      AuthSuccess,
			Token:       resp.NextGenCSO,
			Cached:      false,
			Environment: a.environment,
			Timestamp:   now,
		}
		// An advisory message alongside the success code is a warning,
		// not a failure (typically a missing billing code).
		if resp.ErrorDescription != "" {
			outcome.Warning = resp.ErrorDescription
			a.logger.Warn("authentication succeeded with advisory",
				"username", logging.MaskUsername(req.Username),
				"advisory", resp.ErrorDescription,
			)
		}
		return outcome, nil
	}

	if mfaIndicated(resp) {
		a.observe("mfa_required")
		return AuthOutcome{
			Status:      AuthMFARequired,
			Message:     resp.ErrorDescription,
			Environment: a.environment,
			Timestamp:   now,
		}, nil
	}

	a.observe("invalid_credentials")
	a.limiter.Record(ctx, req.Identity, false)
	a.logger.Warn("authentication rejected",
		"username", logging.MaskUsername(req.Username),
	)

	return AuthOutcome{
		Status:      AuthInvalidCredentials,
		Message:     "login or password is incorrect",
		Environment: a.environment,
		Timestamp:   now,
	}, nil
}

// postLogin performs one handshake round-trip, classifying failures for the
// retry engine. 429 and 5xx are retryable; malformed responses are not.
func (a *Authenticator) postLogin(ctx context.Context, payload map[string]string) (loginResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return loginResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL, bytes.NewReader(body))
	if err != nil {
		return loginResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return loginResponse{}, NewRetryableError(fmt.Errorf("auth request failed: %w", err))
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		delay := parseRetryAfter(httpResp.Header.Get("Retry-After"))
		return loginResponse{}, &RetryableError{
			Err:        &RateLimitedError{RetryAfter: delay},
			RetryAfter: delay,
		}
	case httpResp.StatusCode >= 500:
		return loginResponse{}, NewRetryableError(fmt.Errorf("auth service returned status %d", httpResp.StatusCode))
	case httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated:
		return loginResponse{}, fmt.Errorf("auth service returned status %d", httpResp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return loginResponse{}, NewRetryableError(fmt.Errorf("failed to read auth response: %w", err))
	}

	var resp loginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return loginResponse{}, fmt.Errorf("malformed auth response: %w", err)
	}

	return resp, nil
}

// validateToken probes the external API with the cached token. Errors are
// treated as valid: the cache is opportunistic and callers handle rejection
// by re-authenticating.
func (a *Authenticator) validateToken(ctx context.Context, token string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.probeURL, nil)
	if err != nil {
		return true
	}
	req.Header.Set("X-NEXT-GEN-CSO", token)

	resp, err := a.client.Do(req)
	if err != nil {
		return true
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden
}

// Invalidate clears the cached token for the identity. Used for logout and
// self-healing after a rejected cached token.
func (a *Authenticator) Invalidate(ctx context.Context, identity string) {
	a.cache.Invalidate(ctx, identity)
}

// Logout invalidates the cache and best-effort revokes the session with the
// external service. Revocation failures are logged, not surfaced: the local
// invalidation already guarantees no further use.
func (a *Authenticator) Logout(ctx context.Context, identity string) {
	token, ok := a.cache.Get(ctx, identity)
	a.cache.Invalidate(ctx, identity)
	if !ok {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL+"/logout", nil)
	if err != nil {
		return
	}
	req.Header.Set("X-NEXT-GEN-CSO", token)

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Debug("session revocation failed", "error", err)
		return
	}
	resp.Body.Close()
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 30 * time.Second
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 30 * time.Second
}
