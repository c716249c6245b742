package notify

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revenuerelay/internal/jws"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return token
}

func TestDecodeOuter(t *testing.T) {
	inner := mintToken(t, jwt.MapClaims{"productId": "com.example.pro"})
	token := mintToken(t, jwt.MapClaims{
		"notificationType": "DID_RENEW",
		"subtype":          "BILLING_RECOVERY",
		"notificationUUID": "0b7c1c1e-5f2a-4a43-9c55-3fd0b5a0a111",
		"version":          "2.0",
		"signedDate":       1700000000000,
		"data": map[string]any{
			"environment":           "Sandbox",
			"bundleId":              "com.example.app",
			"appAppleId":            1234567890,
			"signedTransactionInfo": inner,
		},
	})

	claims, err := DecodeOuter(token)
	require.NoError(t, err)

	assert.Equal(t, "DID_RENEW", claims.NotificationType)
	assert.Equal(t, "BILLING_RECOVERY", claims.Subtype)
	assert.Equal(t, "2.0", claims.Version)
	assert.Equal(t, int64(1700000000000), claims.SignedDate)
	assert.Equal(t, "com.example.app", claims.Data.BundleID)
	assert.Equal(t, int64(1234567890), claims.Data.AppAppleID)
	assert.Equal(t, "Sandbox", claims.EnvironmentName())
	assert.True(t, claims.IsSandbox())
	assert.True(t, claims.HasTransaction())
}

func TestDecodeOuter_Malformed(t *testing.T) {
	_, err := DecodeOuter("not-a-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, jws.ErrMalformedToken))
}

func TestEnvironmentName_Default(t *testing.T) {
	assert.Equal(t, EnvironmentProduction, (&OuterClaims{}).EnvironmentName())
	assert.Equal(t, EnvironmentProduction, (*OuterClaims)(nil).EnvironmentName())
	assert.False(t, (&OuterClaims{}).IsSandbox())

	c := &OuterClaims{Data: NotificationData{Environment: "Production"}}
	assert.False(t, c.IsSandbox())
}

func TestDecodeTransaction(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		outer := &OuterClaims{Data: NotificationData{
			SignedTransactionInfo: mintToken(t, jwt.MapClaims{
				"productId":     "com.example.lifetime",
				"transactionId": "2000000000000001",
				"price":         9990,
				"currency":      "USD",
			}),
		}}

		inner, err := DecodeTransaction(outer)
		require.NoError(t, err)
		require.NotNil(t, inner)
		assert.Equal(t, "com.example.lifetime", inner.ProductID)
		assert.Equal(t, "2000000000000001", inner.TransactionID)
		assert.Equal(t, int64(9990), inner.Price)
		assert.Equal(t, "USD", inner.Currency)
	})

	t.Run("absent", func(t *testing.T) {
		inner, err := DecodeTransaction(&OuterClaims{})
		assert.NoError(t, err)
		assert.Nil(t, inner)
	})

	t.Run("malformed", func(t *testing.T) {
		outer := &OuterClaims{Data: NotificationData{SignedTransactionInfo: "only.two"}}
		inner, err := DecodeTransaction(outer)
		assert.Nil(t, inner)
		require.Error(t, err)
		assert.True(t, errors.Is(err, jws.ErrMalformedToken))
		assert.Contains(t, err.Error(), "signedTransactionInfo")
	})
}

func TestDecodeOuter_LenientFieldTypes(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{
		"notificationType": "ONE_TIME_CHARGE",
		"subtype":          nil,
		"notificationUUID": 42,
		"version":          true,
		"signedDate":       "not a number",
		"data": map[string]any{
			"environment":           "Sandbox",
			"appAppleId":            "123",
			"bundleId":              map[string]any{"id": "x"},
			"signedTransactionInfo": "a.b.c",
		},
	})

	claims, err := DecodeOuter(token)
	require.NoError(t, err)

	assert.Equal(t, "ONE_TIME_CHARGE", claims.NotificationType)
	assert.Empty(t, claims.Subtype)
	assert.Equal(t, "42", claims.NotificationUUID)
	assert.Equal(t, "true", claims.Version)
	assert.Zero(t, claims.SignedDate)
	assert.Zero(t, claims.Data.AppAppleID)
	assert.Empty(t, claims.Data.BundleID)
	assert.Equal(t, "a.b.c", claims.Data.SignedTransactionInfo)
	assert.True(t, claims.IsSandbox())
}

func TestDecodeOuter_DataNotAnObject(t *testing.T) {
	for _, data := range []any{nil, "text", 7, []any{"a"}} {
		claims, err := DecodeOuter(mintToken(t, jwt.MapClaims{
			"notificationType": "DID_RENEW",
			"data":             data,
		}))
		require.NoError(t, err, "data=%v", data)
		assert.Equal(t, NotificationData{}, claims.Data)
		assert.Equal(t, EnvironmentProduction, claims.EnvironmentName())
	}
}

func TestDecodeOuter_RejectsNullClaims(t *testing.T) {
	_, err := DecodeOuter("e30.bnVsbA.sig")
	require.Error(t, err)
	assert.ErrorIs(t, err, jws.ErrMalformedToken)
}

func TestDecodeTransaction_NumericProductID(t *testing.T) {
	outer := &OuterClaims{Data: NotificationData{
		SignedTransactionInfo: mintToken(t, jwt.MapClaims{
			"productId": 1001,
			"price":     "free",
		}),
	}}

	inner, err := DecodeTransaction(outer)
	require.NoError(t, err)
	assert.Equal(t, "1001", inner.ProductID)
	assert.Zero(t, inner.Price)
}
