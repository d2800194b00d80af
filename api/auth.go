package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Token is the response of a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is a registered account.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	IsActive bool   `json:"is_active"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Login exchanges credentials for an access token using the OAuth2 password
// form. On success the token is also installed on the client.
func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := c.newRequest(ctx, http.MethodPost, Prefix+"/auth/login", nil,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Accept", "application/json")

	var tok Token
	if err := c.send(c.httpClient, req, &tok); err != nil {
		return Token{}, err
	}
	c.SetToken(tok.AccessToken)
	return tok, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, rr RegisterRequest) (User, error) {
	var u User
	err := c.doJSON(ctx, http.MethodPost, Prefix+"/auth/register", nil, rr, &u)
	return u, err
}
