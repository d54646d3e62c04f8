package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spacedown/spacedown/internal/model"
)

// contentExpand lists the sub-resources expanded into the content listing.
// Expanding everything in one request keeps the export to one listing pass:
// body for conversion, ancestors for hierarchy, labels and version for
// frontmatter and date filtering.
const contentExpand = "body.storage,ancestors,metadata.labels,version"

// SpaceInfo identifies a space on the site.
type SpaceInfo struct {
	// Key is the space key, e.g. "DOCS".
	Key string `json:"key"`

	// Name is the human-readable space name.
	Name string `json:"name"`
}

// contentListResponse is the envelope of a paginated content listing.
type contentListResponse struct {
	Results []contentResult `json:"results"`
	Size    int             `json:"size"`
}

// contentResult is one page in a content listing with the sub-resources
// named by contentExpand.
type contentResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Ancestors []struct {
		ID string `json:"id"`
	} `json:"ancestors"`
	Metadata struct {
		Labels struct {
			Results []struct {
				Name string `json:"name"`
			} `json:"results"`
		} `json:"labels"`
	} `json:"metadata"`
	Version struct {
		When string `json:"when"`
	} `json:"version"`
}

// CheckSpace verifies that the space exists and returns its key and name.
// A 404 maps to ErrSpaceNotFound so the CLI can distinguish a typo in the
// space key from a connectivity problem.
func (c *Client) CheckSpace(ctx context.Context, spaceKey string) (SpaceInfo, error) {
	u := c.apiURL("/rest/api/space/"+url.PathEscape(spaceKey), nil)

	resp, err := c.get(ctx, u, "application/json")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SpaceInfo{}, fmt.Errorf("%w: %q", ErrSpaceNotFound, spaceKey)
		}
		return SpaceInfo{}, err
	}
	defer drainAndClose(resp.Body)

	var info SpaceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return SpaceInfo{}, fmt.Errorf("decode space response: %w", err)
	}
	return info, nil
}

// FetchPages retrieves every page of the space, following pagination until
// a short page signals the end of the listing. Records are returned in API
// order; hierarchy building and date filtering happen downstream.
func (c *Client) FetchPages(ctx context.Context, spaceKey string) ([]model.PageRecord, error) {
	records := make([]model.PageRecord, 0, c.pageLimit)
	start := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		query := url.Values{}
		query.Set("spaceKey", spaceKey)
		query.Set("type", "page")
		query.Set("start", strconv.Itoa(start))
		query.Set("limit", strconv.Itoa(c.pageLimit))
		query.Set("expand", contentExpand)

		u := c.apiURL("/rest/api/content", query)
		c.logger.Debug("fetching page listing", "space", spaceKey, "start", start)

		resp, err := c.get(ctx, u, "application/json")
		if err != nil {
			return nil, fmt.Errorf("list content at offset %d: %w", start, err)
		}

		var list contentListResponse
		err = json.NewDecoder(resp.Body).Decode(&list)
		drainAndClose(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decode content listing at offset %d: %w", start, err)
		}

		for _, result := range list.Results {
			records = append(records, toPageRecord(result))
		}

		// A short page means the listing is exhausted.
		if len(list.Results) < c.pageLimit {
			return records, nil
		}
		start += c.pageLimit
	}
}

// toPageRecord normalizes one listing result into the exporter's model.
func toPageRecord(result contentResult) model.PageRecord {
	record := model.PageRecord{
		ID:       result.ID,
		Title:    result.Title,
		HTMLBody: result.Body.Storage.Value,
	}

	// The immediate parent is the last ancestor; the API returns the chain
	// ordered root-first.
	if n := len(result.Ancestors); n > 0 {
		record.ParentID = result.Ancestors[n-1].ID
	}

	record.Labels = dedupeLabels(result.Metadata.Labels.Results)

	// An unparsable timestamp leaves LastModified zero, which the date
	// filter treats as "always include".
	if result.Version.When != "" {
		if t, err := time.Parse(time.RFC3339, result.Version.When); err == nil {
			record.LastModified = t
		}
	}

	return record
}

// dedupeLabels returns label names with duplicates removed, preserving API
// order.
func dedupeLabels(labels []struct {
	Name string `json:"name"`
}) []string {
	if len(labels) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(labels))
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		if l.Name == "" || seen[l.Name] {
			continue
		}
		seen[l.Name] = true
		names = append(names, l.Name)
	}
	return names
}
