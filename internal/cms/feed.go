package cms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Feed is a syndication feed being fetched. Hooks on ActionFeedOptions may
// fill RawData themselves, in which case no network fetch happens.
type Feed struct {
	URL     string
	RawData []byte
}

// FeedClient is the client FetchFeed uses when no hook supplied the data. It
// deliberately bypasses the requests transport registry.
var FeedClient = &http.Client{Timeout: 10 * time.Second}

// FetchFeed fetches the feed at url.
func (e *Env) FetchFeed(ctx context.Context, url string) (*Feed, error) {
	feed := &Feed{URL: url}
	e.Hooks.DoAction(ActionFeedOptions, feed, url)
	if feed.RawData != nil {
		return feed, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	resp, err := FeedClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // cleanup

	feed.RawData, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", url, err)
	}
	return feed, nil
}
