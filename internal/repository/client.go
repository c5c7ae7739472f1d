package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"profilepayloads/internal/logging"
)

// NewClient returns a retrying HTTP client that logs through the package
// logger. Exhausted retries hand the last response back to the caller so
// status errors stay distinguishable.
func NewClient(retries int, timeout time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	if retries < 0 {
		retries = 0
	}
	c.RetryMax = retries
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	if timeout > 0 {
		c.HTTPClient.Timeout = timeout
	}
	c.Logger = leveledLogger{entry: logging.Log.WithField("component", "http")}
	c.ErrorHandler = keepLastResponse
	return c
}

// keepLastResponse returns the final response of an exhausted retry loop
// without an error so its status code reaches the caller.
func keepLastResponse(resp *http.Response, err error, _ int) (*http.Response, error) {
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger. Request
// chatter goes to debug.
type leveledLogger struct {
	entry *logrus.Entry
}

func (l leveledLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}

// get fetches url and requires a 200 response.
func get(ctx context.Context, client *retryablehttp.Client, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("REPO_REQUEST: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("REPO_REQUEST: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusCode{Code: resp.StatusCode, URL: url}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("REPO_REQUEST: read %s: %w", url, err)
	}
	return body, nil
}
