package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spacedown/spacedown/internal/model"
)

// attachmentListResponse is the envelope of a paginated attachment listing.
type attachmentListResponse struct {
	Results []attachmentResult `json:"results"`
}

// attachmentResult is one attachment in a listing.
type attachmentResult struct {
	Title    string `json:"title"`
	Metadata struct {
		MediaType string `json:"mediaType"`
	} `json:"metadata"`
	Links struct {
		Download string `json:"download"`
	} `json:"_links"`
}

// FetchAttachments lists the attachment metadata of one page, following
// pagination. Attachments without a download link are skipped; there is
// nothing to export for them.
func (c *Client) FetchAttachments(ctx context.Context, pageID string) ([]model.AttachmentRef, error) {
	var refs []model.AttachmentRef
	start := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		query := url.Values{}
		query.Set("start", strconv.Itoa(start))
		query.Set("limit", strconv.Itoa(c.pageLimit))

		u := c.apiURL("/rest/api/content/"+url.PathEscape(pageID)+"/child/attachment", query)

		resp, err := c.get(ctx, u, "application/json")
		if err != nil {
			return nil, fmt.Errorf("list attachments of page %s: %w", pageID, err)
		}

		var list attachmentListResponse
		err = json.NewDecoder(resp.Body).Decode(&list)
		drainAndClose(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decode attachment listing of page %s: %w", pageID, err)
		}

		for _, result := range list.Results {
			if result.Links.Download == "" {
				continue
			}
			refs = append(refs, model.AttachmentRef{
				Filename:    result.Title,
				DownloadURL: result.Links.Download,
				MediaType:   result.Metadata.MediaType,
			})
		}

		if len(list.Results) < c.pageLimit {
			return refs, nil
		}
		start += c.pageLimit
	}
}

// Download streams one attachment to w. Establishing the request is retried
// like any other call; once bytes flow, a broken stream surfaces as an
// error for the caller to record. The caller must not keep a partial file
// on error.
func (c *Client) Download(ctx context.Context, ref model.AttachmentRef, w io.Writer) error {
	resp, err := c.get(ctx, c.resolveDownloadURL(ref.DownloadURL), "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download %s: %w", ref.Filename, err)
	}
	return nil
}

// resolveDownloadURL resolves the download link from an attachment listing.
// The API returns links relative to the site root ("/download/attachments/...").
func (c *Client) resolveDownloadURL(link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return c.baseURL + link
}
