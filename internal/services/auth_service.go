// Package services – mini-app authentication
//
// Telegram WebApps pass an initData query string signed with
// HMAC-SHA256(key = HMAC-SHA256("WebAppData", botToken)). Verification here
// follows the documented scheme: sort the received fields minus "hash" into
// a newline-joined data-check string, compute the tag, and constant-time
// compare it with the received hash.
package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AuthUser is the identity of a verified mini-app visitor.
type AuthUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// AuthService verifies Telegram WebApp init data.
type AuthService struct {
	BotToken string
	// MaxAge bounds the auth_date freshness; zero disables the check.
	MaxAge time.Duration
}

// NewAuthService constructs an AuthService with a 24h freshness bound.
func NewAuthService(botToken string) *AuthService {
	return &AuthService{BotToken: botToken, MaxAge: 24 * time.Hour}
}

// Verify checks the signature and freshness of initData and returns the
// embedded user. Returns ErrInvalidInitData on any failure.
func (a *AuthService) Verify(initData string) (*AuthUser, error) {
	if a.BotToken == "" || initData == "" {
		return nil, ErrInvalidInitData
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInvalidInitData
	}
	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, ErrInvalidInitData
	}

	// Data-check string: every field except hash, sorted, newline-joined.
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	checkString := strings.Join(pairs, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(a.BotToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	want := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(want), []byte(strings.ToLower(gotHash))) {
		return nil, ErrInvalidInitData
	}

	if a.MaxAge > 0 {
		sec, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil || sec <= 0 || time.Since(time.Unix(sec, 0)) > a.MaxAge {
			return nil, ErrInvalidInitData
		}
	}

	var user AuthUser
	if raw := values.Get("user"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, ErrInvalidInitData
		}
	}
	if user.ID == 0 {
		return nil, ErrInvalidInitData
	}
	return &user, nil
}
