package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	authkit "github.com/vantagecms/authkit"
)

// DefaultRequestTimeout is an exported constant or variable used by the request pipeline.
const DefaultRequestTimeout = 30 * time.Second

// RequestIDHeader is an exported constant or variable used by the request pipeline.
const RequestIDHeader = "X-Request-Id"

// Session defines a public type used by authkit APIs.
//
// Session is the slice of the session manager the pipeline needs. *authkit.Manager
// satisfies it.
type Session interface {
	AccessToken() string
	Renew(ctx context.Context) error
	Logout(ctx context.Context) error
}

// Config defines a public type used by authkit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// HTTPClient is the underlying transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// RequestTimeout bounds each attempt when the request context carries no
	// deadline of its own. Defaults to DefaultRequestTimeout; set negative to
	// disable.
	RequestTimeout time.Duration
	// AuthExempt lists URL paths whose 401 responses are credential failures
	// rather than session expiry. Populate it from api.Client.AuthExemptPaths.
	AuthExempt []string
}

// Pipeline defines a public type used by authkit APIs.
//
// Pipeline instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Pipeline struct {
	session    Session
	httpClient *http.Client
	timeout    time.Duration
	exempt     map[string]struct{}
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
func New(session Session, cfg Config) (*Pipeline, error) {
	if session == nil {
		return nil, errors.New("session required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	exempt := make(map[string]struct{}, len(cfg.AuthExempt))
	for _, p := range cfg.AuthExempt {
		exempt[normalizePath(p)] = struct{}{}
	}

	return &Pipeline{
		session:    session,
		httpClient: httpClient,
		timeout:    timeout,
		exempt:     exempt,
	}, nil
}

// Do describes the do operation and its observable behavior.
//
// Do sends the request with the current bearer token. On a 401 from a
// non-exempt path it renews the session once and retries with the fresh token;
// if renewal or the retry fails it logs the session out and returns an error
// satisfying errors.Is(err, authkit.ErrSessionExpired).
//
// Do may return an error when input validation, dependency calls, or security checks fail.
// Do does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Pipeline) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	cancel := func() {}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	resp, err := p.attempt(ctx, req, p.session.AccessToken())
	if err != nil {
		return nil, classify(ctx, err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if p.isExempt(req.URL.Path) {
		discard(resp)
		return nil, authkit.ErrInvalidCredentials
	}

	discard(resp)
	if err := p.session.Renew(ctx); err != nil {
		// The request deadline expiring mid-renewal says nothing about the
		// refresh token; the renewal itself may still complete for others.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, classify(ctx, err)
		}
		// A transient renewal failure leaves the session intact; only a
		// terminal rejection ends it.
		if authkit.IsTransient(err) {
			return nil, err
		}
		p.endSession(err)
		return nil, errors.Join(authkit.ErrSessionExpired, err)
	}

	resp, err = p.retry(ctx, req, p.session.AccessToken())
	if err != nil {
		return nil, classify(ctx, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)
		err := fmt.Errorf("request rejected after renewal: %s %s", req.Method, req.URL.Path)
		p.endSession(err)
		return nil, errors.Join(authkit.ErrSessionExpired, err)
	}

	return resp, nil
}

func (p *Pipeline) attempt(ctx context.Context, req *http.Request, token string) (*http.Response, error) {
	clone := p.clone(ctx, req)
	if clone == nil {
		return nil, errors.New("request body not replayable")
	}
	if clone.Header.Get("Authorization") == "" && token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	return p.httpClient.Do(clone)
}

// retry re-sends after a renewal. The renewed token overwrites any
// Authorization header, including one the caller pinned; replaying the dead
// credential would only earn a second 401.
func (p *Pipeline) retry(ctx context.Context, req *http.Request, token string) (*http.Response, error) {
	clone := p.clone(ctx, req)
	if clone == nil {
		return nil, errors.New("request body not replayable")
	}
	if token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	return p.httpClient.Do(clone)
}

func (p *Pipeline) clone(ctx context.Context, req *http.Request) *http.Request {
	clone := req.Clone(ctx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil
		}
		clone.Body = body
	}
	if clone.Header.Get(RequestIDHeader) == "" {
		clone.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return clone
}

func (p *Pipeline) endSession(cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.session.Logout(ctx); err != nil {
		log.Printf("authkit: logout after %v failed: %v", cause, err)
	}
}

func (p *Pipeline) isExempt(path string) bool {
	_, ok := p.exempt[normalizePath(path)]
	return ok
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(authkit.ErrRequestTimeout, err)
	}
	return errors.Join(authkit.ErrTransient, err)
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
