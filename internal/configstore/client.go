// Package configstore fetches risk threshold configuration from a remote
// configuration service, so threshold revisions can be rolled out without
// redeploying the assessment daemon.
package configstore

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"edutrack/internal/rules"
)

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetRetryCount(3)
	r.SetRetryWaitTime(time.Second)
	return &Client{base, r}
}

type thresholdsResp struct {
	Code       int                   `json:"code"`
	Msg        string                `json:"msg"`
	Thresholds rules.ThresholdConfig `json:"thresholds"`
}

// FetchThresholds retrieves the current threshold configuration. The
// returned config is validated before use; a syntactically valid but
// inconsistent revision is rejected here rather than at evaluation time.
func (c *Client) FetchThresholds() (rules.ThresholdConfig, error) {
	resp := &thresholdsResp{}
	httpResp, err := c.rest.R().
		SetResult(resp).
		Get(c.base + "/api/v1/thresholds")
	if err != nil {
		return rules.ThresholdConfig{}, fmt.Errorf("config store request failed: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		return rules.ThresholdConfig{}, fmt.Errorf("config store: status %d", httpResp.StatusCode())
	}
	if resp.Code != 0 {
		return rules.ThresholdConfig{}, fmt.Errorf("config store: %d %s", resp.Code, resp.Msg)
	}
	if err := resp.Thresholds.Validate(); err != nil {
		return rules.ThresholdConfig{}, fmt.Errorf("config store returned invalid thresholds: %w", err)
	}
	return resp.Thresholds, nil
}
