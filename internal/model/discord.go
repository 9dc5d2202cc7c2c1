package model

// DiscordUser is the subset of the Discord user object the portal reads.
type DiscordUser struct {
	Id            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// DiscordMember is a guild member; Roles are role id snowflakes.
type DiscordMember struct {
	User  *DiscordUser `json:"user,omitempty"`
	Roles []string     `json:"roles"`
}

// DiscordTokenResponse is the OAuth code-exchange answer.
type DiscordTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// WebhookEmbedField is one field of a Discord webhook embed.
type WebhookEmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WebhookEmbed is a Discord webhook embed payload.
type WebhookEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Fields      []WebhookEmbedField `json:"fields"`
}

// WebhookMessage is the body posted to a Discord webhook.
type WebhookMessage struct {
	Embeds []WebhookEmbed `json:"embeds"`
}
