package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jobmatch/jobmatch/internal/session"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body []byte, contentType string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		// bytes.Reader lets the gateway replay the body on retry.
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, err
	}

	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set(session.RequestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

// getJSON makes an authorized GET request and decodes the response into target.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, target any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, q, nil, "")
	if err != nil {
		return err
	}

	body, err := c.gateway.Do(req)
	if err != nil {
		return err
	}

	return decode(body, target)
}

// postJSON sends payload as JSON. Authorized requests go through the gateway.
func (c *Client) postJSON(ctx context.Context, path string, payload any, authorized bool, target any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, data, contentTypeJSON)
	if err != nil {
		return err
	}

	var body []byte
	if authorized {
		body, err = c.gateway.Do(req)
	} else {
		body, err = c.gateway.Send(req)
	}
	if err != nil {
		return err
	}

	return decode(body, target)
}

// postForm sends url-encoded form fields without authorization.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, target any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, []byte(form.Encode()), contentTypeForm)
	if err != nil {
		return err
	}

	body, err := c.gateway.Send(req)
	if err != nil {
		return err
	}

	return decode(body, target)
}

// postFile uploads the file at path as multipart field "file".
func (c *Client) postFile(ctx context.Context, apiPath string, q url.Values, path string, target any) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}

	if _, err = io.Copy(part, file); err != nil {
		return err
	}

	if err = w.Close(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, apiPath, q, b.Bytes(), w.FormDataContentType())
	if err != nil {
		return err
	}

	body, err := c.gateway.Do(req)
	if err != nil {
		return err
	}

	return decode(body, target)
}
