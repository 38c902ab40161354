package session

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/apierr"
	"github.com/jobmatch/jobmatch/internal/logger"
	"github.com/jobmatch/jobmatch/internal/utils"
)

const (
	defaultTimeout = 10 * time.Second
	// Max body length kept in errors and logs.
	maxBodyPreview = 300
	// RequestIDHeader is logged when the caller set it.
	RequestIDHeader = "X-Request-ID"
)

type retriedKey struct{}

// MarkRetried returns req carrying the "already retried" marker.
// A marked request never starts a refresh.
func MarkRetried(req *http.Request) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), retriedKey{}, true))
}

func IsRetried(req *http.Request) bool {
	retried, _ := req.Context().Value(retriedKey{}).(bool)
	return retried
}

// Gateway sends requests that need authorization.
type Gateway struct {
	session    *Session
	logger     *zap.Logger
	HTTPClient *http.Client
}

func NewGateway(session *Session, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Gateway{
		session: session,
		logger:  logger,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

func (g *Gateway) Session() *Session { return g.session }

// Do attaches the current bearer token to req, overwriting any Authorization
// header, and returns the body of a 2xx response. A 401 triggers one shared
// refresh and a single retry of req.
func (g *Gateway) Do(req *http.Request) ([]byte, error) {
	cred := g.session.Credential()

	if cred.AccessToken == "" {
		if cred.RefreshToken == "" || IsRetried(req) {
			return nil, apierr.ErrUnauthorized
		}
		return g.retry(req, "")
	}

	status, body, err := g.send(req, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	if status != http.StatusUnauthorized {
		return body, nil
	}

	if IsRetried(req) {
		return nil, apierr.ErrUnauthorized
	}

	g.logger.Debug("access token rejected", logger.RequestFields(req.Method, req.URL.Path, req.Header.Get(RequestIDHeader))...)

	return g.retry(req, cred.AccessToken)
}

func (g *Gateway) retry(req *http.Request, stale string) ([]byte, error) {
	next := g.session.Credential()
	if next.AccessToken == "" || next.AccessToken == stale {
		var err error
		next, err = g.session.Refresh(req.Context(), stale)
		if err != nil {
			return nil, err
		}
	}

	status, body, err := g.send(MarkRetried(req), next.AccessToken)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		return nil, apierr.ErrUnauthorized
	}

	return body, nil
}

// send performs one round trip. Any status other than 2xx and 401 becomes a ServerError.
func (g *Gateway) send(req *http.Request, token string) (int, []byte, error) {
	op := fmt.Sprintf("%s %s", req.Method, req.URL.Path)

	out := req.Clone(req.Context())
	if req.GetBody != nil {
		b, err := req.GetBody()
		if err != nil {
			return 0, nil, fmt.Errorf("%s: rewinding body: %w", op, err)
		}
		out.Body = b
	} else if IsRetried(req) && req.Body != nil && req.Body != http.NoBody {
		return 0, nil, fmt.Errorf("%s: request body cannot be replayed", op)
	}

	out.Header.Set("Authorization", "Bearer "+token)

	fields := logger.RequestFields(req.Method, req.URL.Path, req.Header.Get(RequestIDHeader))
	g.logger.Debug("make request", append(fields, zap.Bool("retried", IsRetried(req)))...)

	resp, err := g.HTTPClient.Do(out)
	if err != nil {
		return 0, nil, &apierr.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return 0, nil, &apierr.NetworkError{Op: op, Err: err}
	}

	g.logger.Debug("got response", append(fields, zap.Int("status", resp.StatusCode))...)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return resp.StatusCode, nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return resp.StatusCode, nil, &apierr.ServerError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       utils.Preview(string(body), maxBodyPreview),
		}
	}

	return resp.StatusCode, body, nil
}

// Send performs an unauthenticated round trip with the same error mapping as Do.
// Login and refresh go through it.
func (g *Gateway) Send(req *http.Request) ([]byte, error) {
	op := fmt.Sprintf("%s %s", req.Method, req.URL.Path)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, &apierr.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, &apierr.NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &apierr.ServerError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       utils.Preview(string(body), maxBodyPreview),
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, errors.Join(apierr.ErrUnauthorized, serr)
		}
		return nil, serr
	}

	return body, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	return io.ReadAll(reader)
}
