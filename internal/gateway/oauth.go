// GitHub account linking via OAuth2.

package gateway

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/gitmint/gitmint/internal/apierr"
	"github.com/gitmint/gitmint/internal/store"
	"github.com/gitmint/gitmint/internal/wallet"
)

const stateExpiration = 10 * time.Minute

// oauthLinker drives the GitHub link flow: a wallet holder starts at
// /api/auth/github/link, authorizes on GitHub, and lands back on the
// callback where the login is attached to their profile.
type oauthLinker struct {
	data   *store.Store
	config *oauth2.Config
	log    *slog.Logger

	mu     sync.Mutex
	states map[string]pendingLink
}

type pendingLink struct {
	wallet  wallet.Address
	created time.Time
}

func newOAuthLinker(data *store.Store, clientID, clientSecret, baseURL string, log *slog.Logger) *oauthLinker {
	return &oauthLinker{
		data: data,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  baseURL + "/api/auth/github/callback",
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
		},
		log:    log,
		states: make(map[string]pendingLink),
	}
}

// newState registers a fresh CSRF state carrying the wallet through the
// round trip to GitHub.
func (h *oauthLinker) newState(addr wallet.Address) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	state := hex.EncodeToString(buf)

	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := time.Now().Add(-stateExpiration)
	for s, p := range h.states {
		if p.created.Before(cutoff) {
			delete(h.states, s)
		}
	}
	h.states[state] = pendingLink{wallet: addr, created: time.Now()}
	return state
}

func (h *oauthLinker) takeState(state string) (wallet.Address, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.states[state]
	if !ok || time.Since(p.created) > stateExpiration {
		return "", false
	}
	delete(h.states, state)
	return p.wallet, true
}

// LinkRedirect sends the wallet holder to GitHub's consent screen.
func (h *oauthLinker) LinkRedirect(w http.ResponseWriter, r *http.Request) {
	addr, err := wallet.Parse(r.URL.Query().Get("wallet"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "wallet: "+err.Error())
		return
	}
	state := h.newState(addr)
	http.Redirect(w, r, h.config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// Callback completes the flow and attaches the GitHub login to the wallet's
// user, creating one if needed.
func (h *oauthLinker) Callback(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.takeState(r.URL.Query().Get("state"))
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Unknown or expired state")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "MISSING_FIELD", "code is required")
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.log.Warn("oauth exchange failed", "err", err)
		writeError(w, http.StatusBadGateway, "INTERNAL_ERROR", "Token exchange failed")
		return
	}

	client := h.config.Client(r.Context(), token)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		writeError(w, http.StatusBadGateway, "INTERNAL_ERROR", "Failed to fetch GitHub profile")
		return
	}
	defer func() { _ = resp.Body.Close() }()
	var ghUser struct {
		Login string `json:"login"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil || ghUser.Login == "" {
		writeError(w, http.StatusBadGateway, "INTERNAL_ERROR", "Malformed GitHub profile")
		return
	}

	user, err := h.data.LinkGitHub(r.Context(), addr, ghUser.Login, addr)
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			writeError(w, apiErr.StatusCode(), string(apiErr.Code()), apiErr.Error())
			return
		}
		h.log.Error("github link failed", "wallet", addr, "login", ghUser.Login, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to link account")
		return
	}

	h.log.Info("github linked", "wallet", addr, "login", ghUser.Login, "user", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":         user.ID,
		"wallet_address":  user.WalletAddress.String(),
		"github_username": user.GitHubUsername,
	})
}
