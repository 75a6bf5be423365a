package googlebooks

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/shelfnotes/internal/book"
)

// BrowseSubject returns one page of volumes in a subject category along with
// the provider's total item count. Unlike Search, errors are returned.
func (c *Client) BrowseSubject(ctx context.Context, subject string, offset, limit int) ([]book.Book, int, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, 0, fmt.Errorf("google books browse: empty subject")
	}

	params := url.Values{}
	params.Set("q", "subject:"+subject)
	params.Set("maxResults", strconv.Itoa(max(1, min(limit, maxPageSize))))
	params.Set("startIndex", strconv.Itoa(max(0, offset)))
	params.Set("orderBy", "relevance")

	var resp volumesResponse
	if err := c.http.GetJSON(ctx, c.endpoint("/volumes", params), &resp); err != nil {
		return nil, 0, fmt.Errorf("google books browse %q: %w", subject, err)
	}
	return toBooks(resp.Items), resp.TotalItems, nil
}
