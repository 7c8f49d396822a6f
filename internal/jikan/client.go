package jikan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://api.jikan.moe/v4"

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type Genre struct {
	MalID int64  `json:"mal_id"`
	Name  string `json:"name"`
}

type Anime struct {
	MalID    int64   `json:"mal_id"`
	Title    string  `json:"title"`
	Synopsis string  `json:"synopsis"`
	Episodes int     `json:"episodes"`
	Score    float64 `json:"score"`
	Status   string  `json:"status"`
	Images   struct {
		JPG struct {
			ImageURL string `json:"image_url"`
		} `json:"jpg"`
	} `json:"images"`
	Genres []Genre `json:"genres"`
}

func (a Anime) ImageURL() string { return a.Images.JPG.ImageURL }

func (a Anime) GenreNames() []string {
	names := make([]string, 0, len(a.Genres))
	for _, g := range a.Genres {
		names = append(names, g.Name)
	}
	return names
}

type searchResponse struct {
	Data []Anime `json:"data"`
}

type detailResponse struct {
	Data Anime `json:"data"`
}

// Search runs a free-text catalog search, capped at limit results.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Anime, error) {
	u, _ := url.Parse(c.BaseURL + "/anime")
	q := u.Query()
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	u.RawQuery = q.Encode()

	var out searchResponse
	if err := c.get(ctx, u.String(), &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GetAnime fetches full metadata for one MAL id.
func (c *Client) GetAnime(ctx context.Context, malID int64) (*Anime, error) {
	var out detailResponse
	if err := c.get(ctx, fmt.Sprintf("%s/anime/%d", c.BaseURL, malID), &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) get(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("jikan status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(dst)
}
