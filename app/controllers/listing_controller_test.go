package controllers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/ManuelReschke/EZPoster/internal/pkg/imagestore"
)

func listingBody(images ...string) map[string]interface{} {
	return map[string]interface{}{
		"name":                 "Karambit | Fade",
		"description":          "Factory new, instant trade",
		"category":             "DIGITAL_INGAME",
		"platform":             "steam",
		"upc":                  "094922417596",
		"price_in_cents":       1999,
		"shipping_within_days": 1,
		"expires_within_days":  7,
		"tags":                 []string{"csgo"},
		"images":               images,
		"auto_post":            true,
	}
}

func createListing(t *testing.T, e *testEnv, userID uint, images ...string) uint {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/listings", userID, listingBody(images...))
	require.Equal(t, http.StatusCreated, resp.status, "%v", resp.body)
	return uint(resp.body["id"].(float64))
}

func TestCreateListing(t *testing.T) {
	e := newTestEnv(t, premiumUser(1, models.TierBasic))

	id := createListing(t, e, 1, "https://cdn.example.com/a.png")
	stored, err := e.listings.GetByIDForUser(id, 1)
	require.NoError(t, err)
	assert.Equal(t, "USD", stored.AcceptCurrency)
	assert.True(t, stored.AutoPost)
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, stored.Images)
}

func TestCreateListingValidation(t *testing.T) {
	e := newTestEnv(t, premiumUser(1, models.TierBasic))

	body := listingBody()
	body["price_in_cents"] = 10
	body["platform"] = "amiga"
	resp := e.do(t, http.MethodPost, "/listings", 1, body)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "validation_failed", resp.body["error"])
	assert.ElementsMatch(t, []interface{}{"PriceInCents", "Platform"}, resp.body["fields"])
}

func TestCreateListingRespectsPlanCap(t *testing.T) {
	e := newTestEnv(t, freeUser(1), premiumUser(2, models.TierBasic))

	resp := e.do(t, http.MethodPost, "/listings", 1, listingBody())
	assert.Equal(t, http.StatusForbidden, resp.status)
	assert.Equal(t, "listing_limit_reached", resp.body["error"])

	for i := 0; i < 50; i++ {
		createListing(t, e, 2)
	}
	resp = e.do(t, http.MethodPost, "/listings", 2, listingBody())
	assert.Equal(t, http.StatusForbidden, resp.status)
}

func TestListingsAreScopedToOwner(t *testing.T) {
	e := newTestEnv(t, premiumUser(1, models.TierBasic), premiumUser(2, models.TierBasic))
	id := createListing(t, e, 1)

	path := "/listings/" + strconv.Itoa(int(id))
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, path, 1, nil).status)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, path, 2, nil).status)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, path, 2, nil).status)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPut, path+"/autopost", 2, map[string]bool{"enabled": false}).status)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/listings/abc", 1, nil).status)
}

func TestListListings(t *testing.T) {
	e := newTestEnv(t, premiumUser(1, models.TierBasic))
	createListing(t, e, 1)
	createListing(t, e, 1)

	resp := e.do(t, http.MethodGet, "/listings?page=1&limit=10", 1, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.EqualValues(t, 2, resp.body["total"])
	assert.Len(t, resp.body["listings"], 2)
}

func TestUpdateListingReleasesDroppedImages(t *testing.T) {
	e := newTestEnv(t, premiumUser(1, models.TierBasic))
	id := createListing(t, e, 1, "https://cdn.example.com/a.png", "https://cdn.example.com/b.png")

	resp := e.do(t, http.MethodPut, fmt.Sprintf("/listings/%d", id), 1,
		listingBody("https://cdn.example.com/b.png", "https://cdn.example.com/c.png"))
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, e.images.released)
}

func TestDeleteListingReleasesImages(t *testing.T) {
	e := newTestEnv(t, premiumUser(1, models.TierBasic))
	id := createListing(t, e, 1, "https://cdn.example.com/a.png", "https://cdn.example.com/b.png")

	resp := e.do(t, http.MethodDelete, fmt.Sprintf("/listings/%d", id), 1, nil)
	assert.Equal(t, http.StatusNoContent, resp.status)
	assert.Equal(t, []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"}, e.images.released)

	_, err := e.listings.GetByIDForUser(id, 1)
	assert.Error(t, err)
}

func TestToggleListingAutoPost(t *testing.T) {
	e := newTestEnv(t, premiumUser(1, models.TierBasic))
	id := createListing(t, e, 1)

	resp := e.do(t, http.MethodPut, fmt.Sprintf("/listings/%d/autopost", id), 1, map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, resp.status)

	n, _ := e.listings.CountAutoPost(1)
	assert.Zero(t, n)
}

func newImageUpload(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/images", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Test-User", "1")
	return req
}

func TestUploadImage(t *testing.T) {
	e := newTestEnv(t, premiumUser(1, models.TierBasic))

	resp := e.send(t, newImageUpload(t, "image", []byte("jpeg-bytes")))
	require.Equal(t, http.StatusCreated, resp.status)
	assert.Equal(t, "https://cdn.example.com/listings/1/img.png", resp.body["url"])
	assert.Equal(t, [][]byte{[]byte("jpeg-bytes")}, e.images.uploaded)
}

func TestUploadImageErrors(t *testing.T) {
	e := newTestEnv(t, premiumUser(1, models.TierBasic))

	resp := e.send(t, newImageUpload(t, "file", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, resp.status)

	e.images.err = imagestore.ErrInvalidImage
	resp = e.send(t, newImageUpload(t, "image", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, resp.status)

	e.images.err = imagestore.ErrTooLarge
	resp = e.send(t, newImageUpload(t, "image", []byte("x")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.status)
}

func TestDroppedImages(t *testing.T) {
	assert.Equal(t, []string{"a"}, droppedImages([]string{"a", "b"}, []string{"b", "c"}))
	assert.Nil(t, droppedImages([]string{"a"}, []string{"a"}))
	assert.Nil(t, droppedImages(nil, []string{"a"}))
}

func TestImportListingFromGameflip(t *testing.T) {
	var gotPath string
	e := newTestEnv(t, connectedUser(1, models.TierPremium))
	e.useGameflip(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"status": "SUCCESS",
			"data": map[string]interface{}{
				"id":                   "8b1c2e4a-0000-4d4d-9f9f-123456789abc",
				"name":                 "Karambit | Fade",
				"description":          "Factory new",
				"category":             "DIGITAL_INGAME",
				"platform":             "steam",
				"upc":                  "094922417596",
				"price":                2499,
				"shipping_within_days": 1,
				"expire_in_days":       7,
				"tags":                 []string{"csgo"},
				"photo": map[string]interface{}{
					"p2": map[string]interface{}{"view_url": "https://img.example/2.png", "display_order": 2},
					"p1": map[string]interface{}{"view_url": "https://img.example/1.png", "display_order": 1},
				},
			},
		})
	})

	resp := e.do(t, http.MethodPost, "/listings/import", 1, map[string]string{
		"id": "https://gameflip.com/item/karambit-fade/8b1c2e4a-0000-4d4d-9f9f-123456789abc",
	})
	require.Equal(t, http.StatusOK, resp.status, "%v", resp.body)
	assert.Equal(t, "/listing/8b1c2e4a-0000-4d4d-9f9f-123456789abc", gotPath)
	assert.Equal(t, "8b1c2e4a-0000-4d4d-9f9f-123456789abc", resp.body["source_id"])
	assert.Empty(t, resp.body["invalid_fields"])

	draft := resp.body["listing"].(map[string]interface{})
	assert.Equal(t, "Karambit | Fade", draft["name"])
	assert.EqualValues(t, 2499, draft["price_in_cents"])
	assert.EqualValues(t, 7, draft["expires_within_days"])
	assert.Equal(t, "USD", draft["accept_currency"])
	assert.Equal(t, []interface{}{"https://img.example/1.png", "https://img.example/2.png"}, draft["images"])

	count, err := e.listings.CountByUser(1)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImportListingReportsFieldsNeedingEdits(t *testing.T) {
	e := newTestEnv(t, connectedUser(1, models.TierPremium))
	e.useGameflip(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"status": "SUCCESS",
			"data": map[string]interface{}{
				"id": "abc", "name": "Gift card", "description": "d", "category": "GIFTCARD",
				"platform": "unknown", "upc": "GF0000000000", "price": 500,
				"shipping_within_days": 1, "expire_in_days": 30,
			},
		})
	})

	resp := e.do(t, http.MethodPost, "/listings/import", 1, map[string]string{"id": "abc"})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, []interface{}{"UPC"}, resp.body["invalid_fields"])
}

func TestImportListingErrors(t *testing.T) {
	e := newTestEnv(t, premiumUser(1, models.TierPremium), connectedUser(2, models.TierPremium))
	e.useGameflip(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, map[string]interface{}{
			"status": "FAILURE",
			"error":  map[string]interface{}{"message": "listing not found"},
		})
	})

	resp := e.do(t, http.MethodPost, "/listings/import", 1, map[string]string{"id": "abc"})
	assert.Equal(t, http.StatusConflict, resp.status)

	resp = e.do(t, http.MethodPost, "/listings/import", 2, map[string]string{"id": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "invalid_listing_ref", resp.body["error"])

	resp = e.do(t, http.MethodPost, "/listings/import", 2, map[string]string{"id": "missing-id"})
	assert.Equal(t, http.StatusNotFound, resp.status)
}
