// Package revenue classifies App Store notification (type, subtype) pairs
// into revenue events.
package revenue

import (
	"sort"
	"strings"
)

// keySeparator joins notification type and subtype in table keys.
const keySeparator = "|"

// events maps "<type>|<subtype>" to a display label. An empty subtype
// ("<type>|") is the type-only fallback entry. Read-only after init.
var events = map[string]string{
	"SUBSCRIBED|INITIAL_BUY":     "new subscription (first time)",
	"SUBSCRIBED|RESUBSCRIBE":     "resubscription",
	"DID_RENEW|":                 "renewal",
	"DID_RENEW|BILLING_RECOVERY": "renewal (billing recovery)",
	"ONE_TIME_CHARGE|":           "one-time purchase",
	"OFFER_REDEEMED|INITIAL_BUY": "offer redeemed (first purchase)",
	"OFFER_REDEEMED|RESUBSCRIBE": "offer redeemed (resubscription)",
	"OFFER_REDEEMED|UPGRADE":     "offer redeemed (upgrade)",
}

// Event is one row of the revenue event table.
type Event struct {
	NotificationType string
	Subtype          string
	Label            string
}

// Key builds the composite table key for a notification type and subtype.
func Key(notificationType, subtype string) string {
	return notificationType + keySeparator + subtype
}

// Classify returns the display label for a notification.
//
// A subtype-specific entry always wins over the type-only entry. ok is false
// when the notification is not revenue relevant; callers ignore it silently.
func Classify(notificationType, subtype string) (label string, ok bool) {
	if label, ok = events[Key(notificationType, subtype)]; ok {
		return label, true
	}
	if label, ok = events[Key(notificationType, "")]; ok {
		return label, true
	}
	return "", false
}

// Events returns a copy of the table sorted by key.
func Events() []Event {
	out := make([]Event, 0, len(events))
	for key, label := range events {
		typ, sub, _ := strings.Cut(key, keySeparator)
		out = append(out, Event{NotificationType: typ, Subtype: sub, Label: label})
	}
	sort.Slice(out, func(i, j int) bool {
		return Key(out[i].NotificationType, out[i].Subtype) < Key(out[j].NotificationType, out[j].Subtype)
	})
	return out
}
