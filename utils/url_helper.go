package utils

import (
	"context"
	"net/http"
)

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ResolveRedirects follows redirects (shopping click-through links, short links)
// and returns the final URL. On failure the input is returned with the error.
func ResolveRedirects(ctx context.Context, client *http.Client, url string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := doWithUA(ctx, client, http.MethodHead, url)
	if err != nil || resp.StatusCode != http.StatusOK {
		// some stores reject HEAD
		if resp != nil {
			resp.Body.Close()
		}
		resp, err = doWithUA(ctx, client, http.MethodGet, url)
		if err != nil {
			return url, err
		}
	}
	defer resp.Body.Close()

	return resp.Request.URL.String(), nil
}

func doWithUA(ctx context.Context, client *http.Client, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	return client.Do(req)
}
