package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/apierr"
	"github.com/jobmatch/jobmatch/internal/backend"
	"github.com/jobmatch/jobmatch/internal/logger"
	"github.com/jobmatch/jobmatch/internal/store"
)

// cli bundles what every command needs: config, logger, local state and the API client.
type cli struct {
	config *Config
	logger *zap.Logger
	store  *store.SQLite
	client *backend.Client
}

// setup builds the command dependencies and restores the saved session.
// It exits the process on failure, like the rest of the commands do.
func setup(ctx context.Context) *cli {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	l.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	st, err := store.Open(config.Store)
	if err != nil {
		l.Fatal("opening local state", zap.String("path", config.Store), zap.Error(err))
	}

	client := backend.New(st, l.Named("backend"))
	client.APIURL = config.APIURL
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}
	client.SetTimeout(config.Timeout)
	if config.RefreshTimeout > 0 {
		client.Session().RefreshTimeout = config.RefreshTimeout
	}

	if err := client.Restore(ctx); err != nil {
		l.Fatal("restoring session", zap.Error(err))
	}

	return &cli{config: config, logger: l, store: st, client: client}
}

func (c *cli) close() {
	if err := c.store.Close(); err != nil {
		c.logger.Warn("closing local state", zap.Error(err))
	}
	_ = c.logger.Sync()
}

// fatal logs err and exits. Authentication failures get a hint how to recover.
func (c *cli) fatal(msg string, err error) {
	fields := []zap.Field{zap.Error(err)}

	var verr *apierr.ValidationError
	switch {
	case apierr.IsAuth(err):
		fields = append(fields, zap.String("hint", fmt.Sprintf("run `%s login`", app)))
	case errors.As(err, &verr):
		fields = append(fields, zap.String("field", verr.Field))
	}

	_ = c.store.Close()
	c.logger.Fatal(msg, fields...)
}

// userID returns the id of the logged-in user, asking the backend when it is not saved yet.
func (c *cli) userID(ctx context.Context) (string, error) {
	id, err := c.store.UserID(ctx)
	if err == nil && strings.TrimSpace(id) != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	if c.client.Session().Credential().Empty() {
		return "", apierr.ErrUnauthorized
	}

	user, err := c.client.Me(ctx)
	if err != nil {
		return "", err
	}
	if err := c.store.SaveUserID(ctx, user.UserID); err != nil {
		c.logger.Warn("saving user id", zap.Error(err))
	}

	return user.UserID, nil
}

// resume returns the user's resume or nil when none was uploaded yet.
func (c *cli) resume(ctx context.Context, userID string) (*backend.Resume, error) {
	resume, err := c.client.UserResume(ctx, userID)
	if apierr.IsNotFound(err) {
		return nil, nil
	}
	return resume, err
}
