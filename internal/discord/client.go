package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/model"
)

const apiBase = "https://discord.com/api/v10"

// Client talks to the Discord REST API. Every failure here is treated as
// transient: callers log and carry on, and the guarded action simply does
// not occur.
type Client struct {
	Log    *zap.Logger
	Config *koanf.Koanf
	HTTP   *http.Client
}

func NewClient(zap *zap.Logger, koanf *koanf.Koanf) *Client {
	return &Client{
		Log:    zap,
		Config: koanf,
		HTTP:   &http.Client{Timeout: 10 * time.Second},
	}
}

// ExchangeCode trades an OAuth authorization code for an access token.
func (client *Client) ExchangeCode(ctx context.Context, code string) (model.DiscordTokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", client.Config.String("DISCORD_CLIENT_ID"))
	form.Set("client_secret", client.Config.String("DISCORD_CLIENT_SECRET"))
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", client.Config.String("DISCORD_REDIRECT_URI"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return model.DiscordTokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token model.DiscordTokenResponse
	if err := client.do(req, &token); err != nil {
		return model.DiscordTokenResponse{}, err
	}
	return token, nil
}

// Me fetches the profile of the user the access token belongs to.
func (client *Client) Me(ctx context.Context, accessToken string) (model.DiscordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/users/@me", nil)
	if err != nil {
		return model.DiscordUser{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var user model.DiscordUser
	if err := client.do(req, &user); err != nil {
		return model.DiscordUser{}, err
	}
	return user, nil
}

// User fetches a profile by snowflake with the bot token.
func (client *Client) User(ctx context.Context, id string) (model.DiscordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/users/"+id, nil)
	if err != nil {
		return model.DiscordUser{}, err
	}
	req.Header.Set("Authorization", "Bot "+client.Config.String("DISCORD_BOT_TOKEN"))

	var user model.DiscordUser
	if err := client.do(req, &user); err != nil {
		return model.DiscordUser{}, err
	}
	return user, nil
}

// GuildMember fetches a user's membership in the configured guild. The
// returned roles are the live source of truth for staff authority.
func (client *Client) GuildMember(ctx context.Context, id string) (model.DiscordMember, error) {
	guildId := client.Config.String("DISCORD_GUILD_ID")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/guilds/"+guildId+"/members/"+id, nil)
	if err != nil {
		return model.DiscordMember{}, err
	}
	req.Header.Set("Authorization", "Bot "+client.Config.String("DISCORD_BOT_TOKEN"))

	var member model.DiscordMember
	if err := client.do(req, &member); err != nil {
		return model.DiscordMember{}, err
	}
	return member, nil
}

// PostWebhook pushes a moderation notice to the configured channel
// webhook. Best effort, failures are logged by the caller.
func (client *Client) PostWebhook(ctx context.Context, message model.WebhookMessage) error {
	webhookURL := client.Config.String("DISCORD_WEBHOOK_URL")
	if webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return client.do(req, nil)
}

func (client *Client) do(req *http.Request, out interface{}) error {
	res, err := client.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("discord %s %s: http %d", req.Method, req.URL.Path, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
