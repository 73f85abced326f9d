// Package transport executes single-shot request/response exchanges
// against the room server endpoints. Requests run on their own
// goroutine and report completion through callbacks, so no caller
// context ever blocks on the network.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	httpTimeout = 8 * time.Second

	defaultContentType = "text/plain; charset=utf-8"
	httpOrigin         = "https://appr.tc"
)

// ErrTimeout is wrapped into errors returned for requests that exceed
// the fixed transport timeout.
var ErrTimeout = errors.New("request timeout")

var client = &http.Client{Timeout: httpTimeout}

// Request is a single asynchronous HTTP exchange. Exactly one of
// OnComplete or OnError is invoked, from a transport goroutine.
type Request struct {
	Method      string
	URL         string
	Message     string
	ContentType string

	OnComplete func(response string)
	OnError    func(errorMessage string)
}

// Send performs the exchange asynchronously.
func (r Request) Send() {
	go func() {
		response, err := Do(r.Method, r.URL, r.Message, r.ContentType)
		if err != nil {
			if r.OnError != nil {
				r.OnError(err.Error())
			}
			return
		}
		if r.OnComplete != nil {
			r.OnComplete(response)
		}
	}()
}

// Do performs a blocking exchange and returns the response body.
// Non-200 status codes and timeouts are errors.
func Do(method, url, message, contentType string) (string, error) {
	var body io.Reader
	if message != "" {
		body = strings.NewReader(message)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", method, err)
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Origin", httpOrigin)

	resp, err := client.Do(req)
	if err != nil {
		var urlErr interface{ Timeout() bool }
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return "", fmt.Errorf("HTTP %s to %s: %w", method, url, ErrTimeout)
		}
		return "", fmt.Errorf("HTTP %s to %s error: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response from %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("non-200 response to %s to URL: %s : %d", method, url, resp.StatusCode)
	}

	return string(respBody), nil
}
