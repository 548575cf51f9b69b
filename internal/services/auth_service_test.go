package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"
)

const testBotToken = "12345:TEST-TOKEN"

// signInitData produces a correctly signed init data string the way the chat
// platform does: sorted k=v pairs newline-joined, HMAC'd with the derived
// bot-token key.
func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	hash := hex.EncodeToString(mac.Sum(nil))

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("hash", hash)
	return q.Encode()
}

func freshFields() map[string]string {
	return map[string]string{
		"auth_date": fmt.Sprintf("%d", time.Now().Unix()),
		"query_id":  "AAEqBzkEAAAAACoHOQQt",
		"user":      `{"id":9917,"first_name":"Seyoum","last_name":"Assefa","username":"seyoum"}`,
	}
}

func TestAuthVerify_Valid(t *testing.T) {
	svc := NewAuthService(testBotToken)
	user, err := svc.Verify(signInitData(t, testBotToken, freshFields()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.ID != 9917 || user.FirstName != "Seyoum" || user.Username != "seyoum" {
		t.Fatalf("user = %+v", user)
	}
}

func TestAuthVerify_TamperedField(t *testing.T) {
	svc := NewAuthService(testBotToken)
	data := signInitData(t, testBotToken, freshFields())
	tampered := strings.Replace(data, "9917", "1", 1)
	if _, err := svc.Verify(tampered); !errors.Is(err, ErrInvalidInitData) {
		t.Fatalf("err = %v, want ErrInvalidInitData", err)
	}
}

func TestAuthVerify_WrongBotToken(t *testing.T) {
	svc := NewAuthService("12345:OTHER-TOKEN")
	if _, err := svc.Verify(signInitData(t, testBotToken, freshFields())); !errors.Is(err, ErrInvalidInitData) {
		t.Fatalf("err = %v, want ErrInvalidInitData", err)
	}
}

func TestAuthVerify_StaleAuthDate(t *testing.T) {
	svc := NewAuthService(testBotToken)
	fields := freshFields()
	fields["auth_date"] = fmt.Sprintf("%d", time.Now().Add(-25*time.Hour).Unix())
	if _, err := svc.Verify(signInitData(t, testBotToken, fields)); !errors.Is(err, ErrInvalidInitData) {
		t.Fatalf("err = %v, want ErrInvalidInitData", err)
	}
}

func TestAuthVerify_MissingPieces(t *testing.T) {
	svc := NewAuthService(testBotToken)

	if _, err := svc.Verify(""); !errors.Is(err, ErrInvalidInitData) {
		t.Fatal("empty init data must fail")
	}
	if _, err := svc.Verify("user=x&auth_date=1"); !errors.Is(err, ErrInvalidInitData) {
		t.Fatal("missing hash must fail")
	}

	fields := freshFields()
	delete(fields, "user")
	if _, err := svc.Verify(signInitData(t, testBotToken, fields)); !errors.Is(err, ErrInvalidInitData) {
		t.Fatal("missing user must fail")
	}
}

func TestAuthVerify_NoToken(t *testing.T) {
	svc := &AuthService{}
	if _, err := svc.Verify(signInitData(t, testBotToken, freshFields())); !errors.Is(err, ErrInvalidInitData) {
		t.Fatal("service without a bot token must reject everything")
	}
}
