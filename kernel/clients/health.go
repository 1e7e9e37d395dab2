package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/oliveagle/jsonpath"
	"github.com/pkg/errors"
)

// HttpHealthChecker implements HealthChecker with plain GET requests. When an
// expression is configured, the response body must be JSON and the JSONPath
// result must render to the wanted value.
type HttpHealthChecker struct {
	Client *http.Client
}

func NewHealthChecker() *HttpHealthChecker {
	return &HttpHealthChecker{Client: http.DefaultClient}
}

func (h *HttpHealthChecker) Check(ctx context.Context, url, expr, want string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "bad health url [%s]", url)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "health check failed for [%s]", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("health check for [%s] returned status %d", url, resp.StatusCode)
	}
	if expr == "" {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrapf(err, "unable to read health body from [%s]", url)
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return errors.Wrapf(err, "health body from [%s] is not json", url)
	}
	value, err := jsonpath.JsonPathLookup(doc, expr)
	if err != nil {
		return errors.Wrapf(err, "jsonpath '%s' failed on health body from [%s]", expr, url)
	}
	if got := fmt.Sprintf("%v", value); got != want {
		return errors.Errorf("health check for [%s]: %s = '%s', want '%s'", url, expr, got, want)
	}
	return nil
}
