package github

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPerPage is the largest page size GitHub accepts
	DefaultPerPage  = 100
	DefaultMaxPages = 10
)

// PageOptions bounds a paginated fetch
type PageOptions struct {
	PerPage  int
	MaxPages int
	MaxItems int           // 0 = no item cap
	TTL      time.Duration // per-page cache TTL, 0 = uncached
}

func (o PageOptions) normalized() PageOptions {
	if o.PerPage <= 0 || o.PerPage > DefaultPerPage {
		o.PerPage = DefaultPerPage
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.MaxItems < 0 {
		o.MaxItems = 0
	}
	return o
}

// PageDecoder extracts the items of one page
type PageDecoder[T any] func(*Response) ([]T, error)

// DecodeList decodes a page whose payload is a JSON array
func DecodeList[T any](resp *Response) ([]T, error) {
	var items []T
	if err := resp.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// Paginate fetches a JSON-array listing page by page
func Paginate[T any](ctx context.Context, gw Requester, endpoint string, opts PageOptions) ([]T, error) {
	return PaginateFunc[T](ctx, gw, endpoint, opts, DecodeList[T])
}

// PaginateFunc fetches pages 1..MaxPages sequentially, stopping at the
// first short page or once MaxItems is reached. Remote ordering is
// preserved. Any page failure discards what was fetched and returns
// the error.
func PaginateFunc[T any](ctx context.Context, gw Requester, endpoint string, opts PageOptions, decode PageDecoder[T]) ([]T, error) {
	opts = opts.normalized()

	var all []T
	for page := 1; page <= opts.MaxPages; page++ {
		resp, err := gw.Cached(ctx, pageEndpoint(endpoint, opts.PerPage, page), RequestOptions{}, opts.TTL)
		if err != nil {
			return nil, err
		}

		items, err := decode(resp)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		if opts.MaxItems > 0 && len(all) >= opts.MaxItems {
			break
		}
		if len(items) < opts.PerPage {
			break
		}
	}

	if opts.MaxItems > 0 && len(all) > opts.MaxItems {
		all = all[:opts.MaxItems]
	}
	return all, nil
}

// pageEndpoint sets per_page and page on endpoint, keeping any other
// query parameters
func pageEndpoint(endpoint string, perPage, page int) string {
	path, rawQuery, _ := strings.Cut(endpoint, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		q = url.Values{}
	}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	return path + "?" + q.Encode()
}

// withQuery appends non-empty parameters to endpoint
func withQuery(endpoint string, params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}
