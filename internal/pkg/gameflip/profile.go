package gameflip

import (
	"context"
	"net/http"
)

// Profile is the subset of the account profile the app uses.
type Profile struct {
	Owner         string `json:"owner"`
	DisplayName   string `json:"display_name"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Avatar        string `json:"avatar"`
	RatingGood    int    `json:"rating_good"`
	RatingNeutral int    `json:"rating_neutral"`
	RatingPoor    int    `json:"rating_poor"`
	Buy           int    `json:"buy"`
	Sell          int    `json:"sell"`
	Verified      string `json:"verified"`
	Created       string `json:"created"`
}

// GetProfile fetches the profile of the authenticated account.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	resp, err := c.do(ctx, http.MethodGet, "/account/me/profile", "", nil, "")
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := decodeData(resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// sellTier maps the number of completed sales to a pacing band.
type sellTier struct {
	minSell    int
	limit      int
	postSecond int
}

// Ordered from the highest band down.
var sellTiers = []sellTier{
	{minSell: 500, limit: 1000, postSecond: 30},
	{minSell: 100, limit: 300, postSecond: 60},
	{minSell: 25, limit: 150, postSecond: 120},
	{minSell: 5, limit: 50, postSecond: 300},
	{minSell: 0, limit: 10, postSecond: 600},
}

func tierFor(sell int) sellTier {
	for _, t := range sellTiers {
		if sell >= t.minSell {
			return t
		}
	}
	return sellTiers[len(sellTiers)-1]
}

// ListingLimit estimates how many active listings the account may hold.
func ListingLimit(sell int) int {
	return tierFor(sell).limit
}

// RecommendedPostTime is the suggested post interval in seconds.
func RecommendedPostTime(sell int) int {
	return tierFor(sell).postSecond
}

// RecommendedPurgeTime is the suggested purge retention in minutes: the
// time it takes to fill the listing limit at the recommended post rate.
func RecommendedPurgeTime(sell int) int {
	t := tierFor(sell)
	secs := t.limit * t.postSecond
	return (secs + 59) / 60
}
