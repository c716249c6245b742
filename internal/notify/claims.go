// Package notify models the App Store notification claims and turns a
// classified revenue event into a push message.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"

	"revenuerelay/internal/jws"
)

// Environments reported in the notification data block.
const (
	EnvironmentProduction = "Production"
	EnvironmentSandbox    = "Sandbox"
)

// OuterClaims is the decoded signedPayload of an App Store Server
// Notification (V2). Only the fields the relay reads are modeled.
//
// Decoding is lenient: a field holding an unexpected JSON type is left at
// its zero value instead of failing the whole notification.
type OuterClaims struct {
	NotificationType string           `json:"notificationType"`
	Subtype          string           `json:"subtype,omitempty"`
	NotificationUUID string           `json:"notificationUUID,omitempty"`
	Version          string           `json:"version,omitempty"`
	SignedDate       int64            `json:"signedDate,omitempty"` // unix millis
	Data             NotificationData `json:"data"`
}

// NotificationData is the "data" object of the outer claims.
type NotificationData struct {
	Environment           string `json:"environment,omitempty"`
	BundleID              string `json:"bundleId,omitempty"`
	AppAppleID            int64  `json:"appAppleId,omitempty"`
	SignedTransactionInfo string `json:"signedTransactionInfo,omitempty"`
	SignedRenewalInfo     string `json:"signedRenewalInfo,omitempty"`
}

// EnvironmentName returns the reported environment, defaulting to Production.
func (c *OuterClaims) EnvironmentName() string {
	if c == nil || c.Data.Environment == "" {
		return EnvironmentProduction
	}
	return c.Data.Environment
}

// IsSandbox reports whether the notification came from the sandbox.
func (c *OuterClaims) IsSandbox() bool {
	return c.EnvironmentName() == EnvironmentSandbox
}

// HasTransaction reports whether a nested transaction token is present.
func (c *OuterClaims) HasTransaction() bool {
	return c != nil && c.Data.SignedTransactionInfo != ""
}

// InnerClaims is the decoded data.signedTransactionInfo token. It decodes as
// leniently as OuterClaims.
type InnerClaims struct {
	ProductID             string `json:"productId,omitempty"`
	TransactionID         string `json:"transactionId,omitempty"`
	OriginalTransactionID string `json:"originalTransactionId,omitempty"`
	PurchaseDate          int64  `json:"purchaseDate,omitempty"` // unix millis
	Price                 int64  `json:"price,omitempty"`        // milliunits of Currency
	Currency              string `json:"currency,omitempty"`
}

// claimString accepts any JSON value. Strings keep their value, numbers and
// booleans keep their literal text, everything else decodes as empty.
type claimString string

func (s *claimString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = claimString(t)
	case float64, bool:
		*s = claimString(bytes.TrimSpace(b))
	default:
		*s = ""
	}
	return nil
}

// claimInt accepts any JSON value. Anything other than an integer decodes
// as zero.
type claimInt int64

func (n *claimInt) UnmarshalJSON(b []byte) error {
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		v = 0
	}
	*n = claimInt(v)
	return nil
}

type outerClaimsJSON struct {
	NotificationType claimString      `json:"notificationType"`
	Subtype          claimString      `json:"subtype"`
	NotificationUUID claimString      `json:"notificationUUID"`
	Version          claimString      `json:"version"`
	SignedDate       claimInt         `json:"signedDate"`
	Data             NotificationData `json:"data"`
}

func (c *OuterClaims) UnmarshalJSON(b []byte) error {
	var w outerClaimsJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = OuterClaims{
		NotificationType: string(w.NotificationType),
		Subtype:          string(w.Subtype),
		NotificationUUID: string(w.NotificationUUID),
		Version:          string(w.Version),
		SignedDate:       int64(w.SignedDate),
		Data:             w.Data,
	}
	return nil
}

type notificationDataJSON struct {
	Environment           claimString `json:"environment"`
	BundleID              claimString `json:"bundleId"`
	AppAppleID            claimInt    `json:"appAppleId"`
	SignedTransactionInfo claimString `json:"signedTransactionInfo"`
	SignedRenewalInfo     claimString `json:"signedRenewalInfo"`
}

// UnmarshalJSON treats a "data" value that is not an object as absent.
func (d *NotificationData) UnmarshalJSON(b []byte) error {
	*d = NotificationData{}
	if !isObject(b) {
		return nil
	}
	var w notificationDataJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*d = NotificationData{
		Environment:           string(w.Environment),
		BundleID:              string(w.BundleID),
		AppAppleID:            int64(w.AppAppleID),
		SignedTransactionInfo: string(w.SignedTransactionInfo),
		SignedRenewalInfo:     string(w.SignedRenewalInfo),
	}
	return nil
}

type innerClaimsJSON struct {
	ProductID             claimString `json:"productId"`
	TransactionID         claimString `json:"transactionId"`
	OriginalTransactionID claimString `json:"originalTransactionId"`
	PurchaseDate          claimInt    `json:"purchaseDate"`
	Price                 claimInt    `json:"price"`
	Currency              claimString `json:"currency"`
}

func (c *InnerClaims) UnmarshalJSON(b []byte) error {
	var w innerClaimsJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = InnerClaims{
		ProductID:             string(w.ProductID),
		TransactionID:         string(w.TransactionID),
		OriginalTransactionID: string(w.OriginalTransactionID),
		PurchaseDate:          int64(w.PurchaseDate),
		Price:                 int64(w.Price),
		Currency:              string(w.Currency),
	}
	return nil
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

// DecodeOuter decodes the signedPayload token.
func DecodeOuter(signedPayload string) (*OuterClaims, error) {
	var claims OuterClaims
	if err := jws.Decode(signedPayload, &claims); err != nil {
		return nil, fmt.Errorf("decode signedPayload: %w", err)
	}
	return &claims, nil
}

// DecodeTransaction decodes the nested transaction token of outer. It returns
// (nil, nil) when no transaction token is present.
func DecodeTransaction(outer *OuterClaims) (*InnerClaims, error) {
	if !outer.HasTransaction() {
		return nil, nil
	}
	var claims InnerClaims
	if err := jws.Decode(outer.Data.SignedTransactionInfo, &claims); err != nil {
		return nil, fmt.Errorf("decode signedTransactionInfo: %w", err)
	}
	return &claims, nil
}
