package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// FunctionClient invokes server functions over HTTP.
type FunctionClient struct {
	httpClient *resty.Client
}

// NewFunctionClient uses httpClient as is, so it carries whatever base URL
// and session cookies the caller configured.
func NewFunctionClient(httpClient *resty.Client) *FunctionClient {
	return &FunctionClient{httpClient: httpClient}
}

func (c *FunctionClient) Invoke(ctx context.Context, name string, body []byte) (json.RawMessage, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/api/functions/" + name)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", name, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("invoke %s: %s: %s", name, resp.Status(), resp.String())
	}

	return json.RawMessage(resp.Body()), nil
}
