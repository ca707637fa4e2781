package domain

import (
	"sort"
	"strings"
	"time"
)

// User is a subscriber identified by a delivery handle such as
// "tg:123456" or "email:someone@example.com".
type User struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscribeResult is the outcome of a subscribe request
type SubscribeResult string

const (
	SubscribeOK                SubscribeResult = "ok"
	SubscribeAlreadySubscribed SubscribeResult = "already_subscribed"
	SubscribeInvalidRepo       SubscribeResult = "invalid_repo"
)

// UnsubscribeResult is the outcome of an unsubscribe request
type UnsubscribeResult string

const (
	UnsubscribeOK            UnsubscribeResult = "ok"
	UnsubscribeNotSubscribed UnsubscribeResult = "not_subscribed"
)

// HandleScheme returns the channel prefix of a handle ("tg", "email")
func HandleScheme(handle string) (scheme, address string) {
	scheme, address, ok := strings.Cut(handle, ":")
	if !ok {
		return "", handle
	}
	return scheme, address
}

// ValidHandle checks a handle has a scheme and an address
func ValidHandle(handle string) bool {
	scheme, address := HandleScheme(handle)
	return scheme != "" && address != ""
}

// FormatNotification renders the message sent to subscribers
func FormatNotification(repoURL string, added, removed []string) string {
	lines := []string{"Repo: " + repoURL, ""}

	if len(added) > 0 {
		lines = append(lines, "New subscribers: "+joinSorted(added))
	}
	if len(removed) > 0 {
		lines = append(lines, "Removed subscribers: "+joinSorted(removed))
	}

	return strings.Join(lines, "\n")
}

func joinSorted(logins []string) string {
	sorted := append([]string(nil), logins...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
