package gameflip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidListingRef is returned for an import reference that is neither
// a listing id nor an item URL.
var ErrInvalidListingRef = errors.New("gameflip: invalid listing reference")

// Listing is the marketplace representation of a posted item.
type Listing struct {
	ID                 string           `json:"id"`
	Owner              string           `json:"owner"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	Status             string           `json:"status"`
	Visibility         string           `json:"visibility"`
	Category           string           `json:"category"`
	Platform           string           `json:"platform"`
	UPC                string           `json:"upc"`
	Price              int64            `json:"price"`
	AcceptCurrency     string           `json:"accept_currency"`
	ShippingWithinDays int              `json:"shipping_within_days"`
	ExpireInDays       int              `json:"expire_in_days"`
	CoverPhoto         string           `json:"cover_photo"`
	Photo              map[string]Photo `json:"photo"`
	Tags               []string         `json:"tags"`
	Created            string           `json:"created"`
	Updated            string           `json:"updated"`
}

// Photo is one image slot of a listing, keyed by photo id.
type Photo struct {
	ViewURL      string `json:"view_url"`
	Status       string `json:"status"`
	DisplayOrder int    `json:"display_order"`
}

// ImageURLs returns the viewable photo URLs in display order.
func (l *Listing) ImageURLs() []string {
	photos := make([]Photo, 0, len(l.Photo))
	for _, p := range l.Photo {
		if p.ViewURL != "" {
			photos = append(photos, p)
		}
	}
	sort.SliceStable(photos, func(i, j int) bool {
		if photos[i].DisplayOrder != photos[j].DisplayOrder {
			return photos[i].DisplayOrder < photos[j].DisplayOrder
		}
		return photos[i].ViewURL < photos[j].ViewURL
	})
	out := make([]string, 0, len(photos))
	for _, p := range photos {
		out = append(out, p.ViewURL)
	}
	return out
}

// ParseListingRef accepts a bare listing id or an item URL such as
// https://gameflip.com/item/some-slug/<id> and returns the id.
func ParseListingRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "/") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", ErrInvalidListingRef
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		ref = segments[len(segments)-1]
	}
	if ref == "" {
		return "", ErrInvalidListingRef
	}
	for _, r := range ref {
		if !(r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "", ErrInvalidListingRef
		}
	}
	return ref, nil
}

type photoSlot struct {
	ID        string `json:"id"`
	UploadURL string `json:"upload_url"`
}

// GetListing fetches one listing by id.
func (c *Client) GetListing(ctx context.Context, id string) (*Listing, error) {
	resp, err := c.do(ctx, http.MethodGet, "/listing/"+url.PathEscape(id), "", nil, "")
	if err != nil {
		return nil, err
	}
	var l Listing
	if err := decodeData(resp, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// SearchListings runs a search and follows next_page until the upstream
// stops returning one. Pages are concatenated in order.
func (c *Client) SearchListings(ctx context.Context, params SearchParams) ([]Listing, error) {
	query := params.Values().Encode()
	var out []Listing

	for page := 0; ; page++ {
		if page >= c.maxPages {
			return out, ErrTooManyPages
		}
		resp, err := c.do(ctx, http.MethodGet, "/listing", query, nil, "")
		if err != nil {
			return nil, err
		}
		if len(resp.Data) > 0 && string(resp.Data) != "null" {
			var items []Listing
			if err := decodeData(resp, &items); err != nil {
				return nil, err
			}
			out = append(out, items...)
		}

		query = nextPageQuery(resp.NextPage)
		if query == "" {
			return out, nil
		}
	}
}

// nextPageQuery returns the query portion of a next_page URL, or "" when
// there is no further page.
func nextPageQuery(next *string) string {
	if next == nil {
		return ""
	}
	_, query, found := strings.Cut(strings.TrimSpace(*next), "?")
	if !found {
		return ""
	}
	return query
}

// EditListing applies a batch of patch operations.
func (c *Client) EditListing(ctx context.Context, id string, ops []PatchOp) error {
	_, err := c.do(ctx, http.MethodPatch, "/listing/"+url.PathEscape(id), "", ops, contentTypeJSONPatch)
	return err
}

// DeleteListing moves the listing back to draft and then deletes it. If the
// delete fails the listing stays in draft.
func (c *Client) DeleteListing(ctx context.Context, id string) error {
	if err := c.EditListing(ctx, id, []PatchOp{Replace("/status", StatusDraft)}); err != nil {
		return fmt.Errorf("unlist %s: %w", id, err)
	}
	if _, err := c.do(ctx, http.MethodDelete, "/listing/"+url.PathEscape(id), "", nil, ""); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// PostListing creates a draft listing, uploads each image in order and
// activates it. The last image's patch batch puts the listing on sale.
// Without images the listing stays a draft. Any failure aborts the
// remaining steps and may leave a draft behind.
func (c *Client) PostListing(ctx context.Context, q ListingQuery, images []string) (string, error) {
	if err := q.Validate(); err != nil {
		return "", fmt.Errorf("gameflip: invalid listing: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/listing", "", q, contentTypeJSON)
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := decodeData(resp, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("gameflip: create listing returned empty id")
	}
	id := created.ID

	for i, image := range images {
		order := i + 1

		resp, err := c.do(ctx, http.MethodPost, "/listing/"+url.PathEscape(id)+"/photo", "", nil, "")
		if err != nil {
			return id, fmt.Errorf("photo slot %d: %w", order, err)
		}
		var slot photoSlot
		if err := decodeData(resp, &slot); err != nil {
			return id, err
		}

		data, err := c.fetchImage(ctx, image)
		if err != nil {
			return id, fmt.Errorf("image %d: %w", order, err)
		}
		if err := c.uploadPhoto(ctx, slot.UploadURL, data); err != nil {
			return id, fmt.Errorf("image %d: %w", order, err)
		}

		ops := []PatchOp{
			Replace("/photo/"+slot.ID+"/status", "active"),
			Replace("/photo/"+slot.ID+"/display_order", order),
		}
		if order == 1 {
			ops = append(ops, Replace("/cover_photo", slot.ID))
		}
		if order == len(images) {
			ops = append(ops, Replace("/status", StatusOnSale))
		}
		if err := c.EditListing(ctx, id, ops); err != nil {
			return id, fmt.Errorf("activate photo %d: %w", order, err)
		}
	}

	return id, nil
}

// fetchImage downloads an image without marketplace credentials.
func (c *Client) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch image failed: status=%d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

func (c *Client) uploadPhoto(ctx context.Context, uploadURL string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "image/png")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to upload image: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}
