package model

type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	AccessTokenExpiresIn  int    `json:"access_token_expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in"`
	TokenType             string `json:"token_type"`
}

// UserLoginRequest carries the OAuth authorization code from the dashboard
// login redirect.
type UserLoginRequest struct {
	Code string `json:"code"`
}
