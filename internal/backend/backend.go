package backend

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/session"
)

const (
	apiURL    = "http://localhost:8000/api"
	userAgent = "jobmatch-cli"

	loginPath        = "/auth/login"
	registerPath     = "/auth/register"
	refreshPath      = "/auth/refresh"
	mePath           = "/auth/me"
	searchPath       = "/jobs/search_and_match"
	jobsPath         = "/jobs"
	historyPath      = "/matches/history"
	resumeUploadPath = "/resumes/upload"
	resumeUserPath   = "/resumes/user"
	resumesPath      = "/resumes"
)

// Client talks to the job matching backend. Authorized calls go through the
// session gateway; login, register and refresh are sent without a bearer.
type Client struct {
	logger  *zap.Logger
	session *session.Session
	gateway *session.Gateway

	UserAgent string
	APIURL    string
}

// New builds a client whose session persists credentials in store.
func New(store session.Store, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		logger:    logger,
		APIURL:    apiURL,
		UserAgent: userAgent,
	}
	c.session = session.New(store, c, logger.Named("session"))
	c.gateway = session.NewGateway(c.session, logger.Named("gateway"))

	return c
}

// Restore loads persisted credentials into the session.
func (c *Client) Restore(ctx context.Context) error {
	return c.session.Restore(ctx)
}

func (c *Client) Session() *session.Session { return c.session }

// SetTimeout bounds every request made through the client.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.gateway.HTTPClient.Timeout = d
	}
}

// SetHTTPClient replaces the transport. Used by tests.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.gateway.HTTPClient = client
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.APIURL, "/") + path
}
