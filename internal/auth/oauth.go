package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubUser is the slice of GitHub's /user response we keep. The API
// returns several dozen fields; unmarshalling only these four means the
// rest is silently ignored.
//
// API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type GitHubUser struct {
	ID        int64  `json:"id"`         // GitHub's numeric user ID, stable across renames
	Login     string `json:"login"`      // GitHub username
	Email     string `json:"email"`      // primary email, empty when hidden in settings
	AvatarURL string `json:"avatar_url"` // profile picture URL
}

// GitHubProvider runs the GitHub Authorization Code flow via golang.org/x/oauth2.
//
// The flow, end to end:
//  1. We redirect the user to GitHub's authorize endpoint with our ClientID
//     and the scopes we want.
//  2. The user approves (or denies) on GitHub's consent page.
//  3. GitHub redirects back to our CallbackURL with a short-lived code.
//  4. We exchange the code for an access token, server-to-server, using the
//     ClientSecret. The token never reaches the browser.
//  5. We call GitHub's /user API with that token to learn who signed in.
//
// Step 4 is why this must live on the server: the ClientSecret proves the
// exchange request really comes from us, and keeping the access token out
// of the browser keeps it out of reach of page scripts.
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider creates a GitHubProvider.
//
// ClientID and ClientSecret come from registering an OAuth App at
// https://github.com/settings/developers. callbackURL must exactly match
// the "Authorization callback URL" configured there, e.g.
// "http://localhost:8080/auth/github/callback".
//
// Requested scopes:
//   - "read:user"  — public profile (ID, login, avatar)
//   - "user:email" — email addresses
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

// AuthURL returns the GitHub URL to redirect the user to.
//
// state is a random string the caller generates and stashes in a cookie
// before redirecting. GitHub echoes it back on the callback; if the echoed
// value doesn't match the cookie, someone is splicing a foreign OAuth
// response into this browser session (CSRF) and the callback must refuse.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow: trades the authorization code for a GitHub
// profile. The callback handler passes the result to the auth service,
// which upserts the user and issues the JWT cookie.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that injects the
	// "Authorization: Bearer <token>" header on every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &ghUser, nil
}
