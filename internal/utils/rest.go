package utils

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// NewRestClient returns a resty client sharing the adapter's http.Client so
// transport-level timeouts apply to listing and credential checks too.
func NewRestClient(httpClient *http.Client) *resty.Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return resty.NewWithClient(httpClient).
		SetHeader("Accept", "application/json")
}

// GetJSON performs a GET and decodes a 2xx response into OutputStruct.
// Non-2xx responses are returned as *StatusError.
func GetJSON[OutputStruct any](ctx context.Context, client *resty.Client, url string, headers ...HeaderOption) (*OutputStruct, error) {
	var result OutputStruct

	request := client.R().SetContext(ctx).SetResult(&result)
	for _, header := range headers {
		request.SetHeader(header.Key, header.Value)
	}

	response, err := request.Get(url)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if response.IsError() {
		return nil, &StatusError{StatusCode: response.StatusCode(), Body: response.String()}
	}

	return &result, nil
}
