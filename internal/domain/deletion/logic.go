package deletion

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func IsTerminal(status string) bool {
	return status == StatusCancelled || status == StatusCompleted
}

// Confirmable reports whether a request in the given status can still be
// confirmed at the given instant.
func Confirmable(status string, expiresAt, now time.Time) bool {
	return status == StatusPending && expiresAt.After(now)
}

func NewToken() (string, error) {
	buff := make([]byte, 32)
	if _, err := rand.Read(buff); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buff), nil
}

// ActionLinks builds the confirmation and cancellation URLs embedded in the
// issuance notification, keyed by (userID, token).
func ActionLinks(baseURL, userID, token string) (string, string) {
	base := strings.TrimRight(baseURL, "/")
	confirm := fmt.Sprintf("%s/api/v1/admin/users/%s/delete-requests/confirm?token=%s", base, userID, token)
	cancel := fmt.Sprintf("%s/api/v1/admin/users/%s/delete-requests/cancel?token=%s", base, userID, token)
	return confirm, cancel
}
