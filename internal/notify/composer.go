package notify

import "fmt"

// UnknownProduct is the body placeholder used when the transaction carries
// no product identifier or could not be decoded.
const UnknownProduct = "unknown product"

const (
	sandboxMarker    = "🧪 [TEST]"
	productionMarker = "🎉"
)

// Message is the title/body pair handed to the push dispatcher.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Composer builds push messages for a single product.
type Composer struct {
	ProductName string
}

// NewComposer returns a Composer for productName.
func NewComposer(productName string) *Composer {
	return &Composer{ProductName: productName}
}

// Compose builds the message for a classified revenue event. inner may be
// nil when the transaction token was absent or failed to decode.
func (c *Composer) Compose(outer *OuterClaims, inner *InnerClaims, label string) Message {
	marker := productionMarker
	if outer.IsSandbox() {
		marker = sandboxMarker
	}

	return Message{
		Title: fmt.Sprintf("%s %s new revenue!", marker, c.ProductName),
		Body:  fmt.Sprintf("Type: %s\nProduct: %s", label, ProductID(inner)),
	}
}

// ProductID returns the product identifier of inner, or UnknownProduct.
func ProductID(inner *InnerClaims) string {
	if inner == nil || inner.ProductID == "" {
		return UnknownProduct
	}
	return inner.ProductID
}
