package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookring/pkg/models"
)

const defaultBaseURL = "https://www.googleapis.com/books/v1"

// MinISBNLength is the shortest identifier we will send to the volumes
// API as an ISBN query; anything shorter falls back to a title search.
const MinISBNLength = 10

// Client queries the Google Books volumes API. The API is treated as an
// unreliable, rate-limited collaborator: a non-matching response is a
// plain miss, not an error, and there is no retry.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	Delay   time.Duration // pause between batch requests
}

func NewClient(baseURL string, delay time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		HTTP:    &http.Client{Timeout: 12 * time.Second},
		BaseURL: baseURL,
		Delay:   delay,
	}
}

type volumesResponse struct {
	Items []struct {
		ID         string `json:"id"`
		VolumeInfo struct {
			Title               string   `json:"title"`
			Authors             []string `json:"authors"`
			Description         string   `json:"description"`
			PageCount           int      `json:"pageCount"`
			Categories          []string `json:"categories"`
			Publisher           string   `json:"publisher"`
			PublishedDate       string   `json:"publishedDate"`
			Language            string   `json:"language"`
			ImageLinks          struct {
				Thumbnail      string `json:"thumbnail"`
				SmallThumbnail string `json:"smallThumbnail"`
			} `json:"imageLinks"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// ByISBN looks a volume up by ISBN. A miss returns (nil, nil).
func (c *Client) ByISBN(ctx context.Context, isbn string) (*models.BookMeta, error) {
	return c.query(ctx, "isbn:"+strings.TrimSpace(isbn))
}

// ByTitle looks a volume up by free-text title. A miss returns (nil, nil).
func (c *Client) ByTitle(ctx context.Context, title string) (*models.BookMeta, error) {
	return c.query(ctx, "intitle:"+strings.TrimSpace(title))
}

func (c *Client) query(ctx context.Context, q string) (*models.BookMeta, error) {
	u, err := url.Parse(c.BaseURL + "/volumes")
	if err != nil {
		return nil, fmt.Errorf("books api: parse url: %w", err)
	}
	qs := u.Query()
	qs.Set("q", q)
	u.RawQuery = qs.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("books api: build request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("books api: request: %w", err)
	}

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("books api: status %d: %s", resp.StatusCode, string(body))
	}

	var vr volumesResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("books api: decode: %w", err)
	}

	if len(vr.Items) == 0 {
		return nil, nil
	}

	item := vr.Items[0]
	info := item.VolumeInfo
	if info.Title == "" {
		return nil, nil
	}

	meta := models.BookMeta{
		Title:         info.Title,
		Authors:       info.Authors,
		Description:   info.Description,
		PageCount:     info.PageCount,
		Categories:    info.Categories,
		Publisher:     info.Publisher,
		PublishedDate: info.PublishedDate,
		Language:      info.Language,
		CoverImageURL: info.ImageLinks.Thumbnail,
		GoogleBooksID: item.ID,
	}
	if meta.CoverImageURL == "" {
		meta.CoverImageURL = info.ImageLinks.SmallThumbnail
	}
	if len(meta.Authors) == 0 {
		meta.Authors = []string{"Unknown Author"}
	}

	for _, id := range info.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_10":
			meta.ISBN10 = id.Identifier
		case "ISBN_13":
			meta.ISBN13 = id.Identifier
		}
	}

	return &meta, nil
}

// BySubject pages through volumes for a subject keyword, up to max
// results. Used by the catalog seeder, not the listing flows.
func (c *Client) BySubject(ctx context.Context, subject string, max int) ([]models.BookMeta, error) {
	if max <= 0 {
		max = 40
	}

	var all []models.BookMeta
	for start := 0; start < max; start += 40 {
		page := max - start
		if page > 40 {
			page = 40
		}

		u, err := url.Parse(c.BaseURL + "/volumes")
		if err != nil {
			return nil, fmt.Errorf("books api: parse url: %w", err)
		}
		qs := u.Query()
		qs.Set("q", "subject:"+strings.TrimSpace(subject))
		qs.Set("startIndex", fmt.Sprintf("%d", start))
		qs.Set("maxResults", fmt.Sprintf("%d", page))
		u.RawQuery = qs.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("books api: build request: %w", err)
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return nil, fmt.Errorf("books api: request: %w", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("books api: status %d: %s", resp.StatusCode, string(body))
		}

		var vr volumesResponse
		if err := json.Unmarshal(body, &vr); err != nil {
			return nil, fmt.Errorf("books api: decode: %w", err)
		}
		if len(vr.Items) == 0 {
			break
		}

		for _, item := range vr.Items {
			info := item.VolumeInfo
			if info.Title == "" {
				continue
			}
			meta := models.BookMeta{
				Title:         info.Title,
				Authors:       info.Authors,
				Description:   info.Description,
				PageCount:     info.PageCount,
				Categories:    info.Categories,
				Publisher:     info.Publisher,
				PublishedDate: info.PublishedDate,
				Language:      info.Language,
				CoverImageURL: info.ImageLinks.Thumbnail,
				GoogleBooksID: item.ID,
			}
			if len(meta.Authors) == 0 {
				meta.Authors = []string{"Unknown Author"}
			}
			for _, id := range info.IndustryIdentifiers {
				switch id.Type {
				case "ISBN_10":
					meta.ISBN10 = id.Identifier
				case "ISBN_13":
					meta.ISBN13 = id.Identifier
				}
			}
			all = append(all, meta)
		}

		if c.Delay > 0 {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(c.Delay):
			}
		}
	}
	return all, nil
}

// Identifier is one batch-lookup input: an ISBN and/or a title.
type Identifier struct {
	ISBN  string
	Title string
}

// Batch resolves identifiers one at a time, sleeping Delay between
// requests to stay under the API's rate limit. Per row: the ISBN is
// tried first when it is plausibly valid, then the title. A row that
// resolves nowhere yields a nil entry; request errors also yield nil
// rather than aborting the batch.
func (c *Client) Batch(ctx context.Context, ids []Identifier) []*models.BookMeta {
	out := make([]*models.BookMeta, 0, len(ids))

	for i, id := range ids {
		var meta *models.BookMeta

		if len(id.ISBN) >= MinISBNLength {
			meta, _ = c.ByISBN(ctx, id.ISBN)
		}
		if meta == nil && strings.TrimSpace(id.Title) != "" {
			meta, _ = c.ByTitle(ctx, id.Title)
		}
		out = append(out, meta)

		if c.Delay > 0 && i < len(ids)-1 {
			select {
			case <-ctx.Done():
				// fill the rest with misses so indexes keep lining up
				for len(out) < len(ids) {
					out = append(out, nil)
				}
				return out
			case <-time.After(c.Delay):
			}
		}
	}
	return out
}
