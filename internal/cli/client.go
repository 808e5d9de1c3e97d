package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"troupe/internal/game"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type StartResult struct {
	Token   string        `json:"token"`
	Profile *game.Profile `json:"profile"`
}

func (c *Client) Start(ctx context.Context, playerID string) (StartResult, error) {
	var out StartResult
	body := map[string]any{}
	if playerID != "" {
		body["player_id"] = playerID
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players", "", body, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context, token string) (*game.Profile, error) {
	var out game.Profile
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/profile", token, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Collection(ctx context.Context, token string) ([]*game.OwnedGirl, error) {
	var out struct {
		Collection []*game.OwnedGirl `json:"collection"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/collection", token, nil, &out)
	return out.Collection, err
}

func (c *Client) Catalog(ctx context.Context, token string) ([]game.CharacterDefinition, error) {
	var out struct {
		Catalog []game.CharacterDefinition `json:"catalog"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog", token, nil, &out)
	return out.Catalog, err
}

func (c *Client) Roll(ctx context.Context, token string, times int) (*game.GachaResult, error) {
	var out game.GachaResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/gacha/roll", token, map[string]any{
		"times": times,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Market(ctx context.Context, token string) (*game.MarketSet, error) {
	var out game.MarketSet
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/market", token, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RegenerateMarket(ctx context.Context, token string) (*game.MarketSet, error) {
	var out game.MarketSet
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/market/regenerate", token, map[string]any{}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Work(ctx context.Context, token, jobID, girlUID string) (*game.WorkResult, error) {
	var out game.WorkResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/market/work", token, map[string]any{
		"job_id":   jobID,
		"girl_uid": girlUID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Upgrade(ctx context.Context, token, girlUID string, tier game.UpgradeTier, mainID, subID string) (*game.UpgradeResult, error) {
	var out game.UpgradeResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/girls/"+url.PathEscape(girlUID)+"/upgrade", token, map[string]any{
		"tier":          string(tier),
		"main_skill_id": mainID,
		"sub_skill_id":  subID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Dismantle(ctx context.Context, token, girlUID string) (*game.DismantleResult, error) {
	var out game.DismantleResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/girls/"+url.PathEscape(girlUID)+"/dismantle", token, map[string]any{}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
