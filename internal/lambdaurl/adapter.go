// Package lambdaurl serves an http.Handler behind an AWS Lambda Function URL.
//
// Function URL invocations use the API Gateway HTTP API 2.0 payload format,
// so the event conversion is delegated to the aws-lambda-go-api-proxy V2
// adapter. This package only restores the request details the adapter does
// not carry over: the public host, the https scheme and the invocation
// request ID.
package lambdaurl

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

// Adapter bridges Function URL invocations to an http.Handler.
type Adapter struct {
	proxy *httpadapter.HandlerAdapterV2
}

// New wraps h.
func New(h http.Handler) *Adapter {
	return &Adapter{proxy: httpadapter.NewV2(invocationHeaders(h))}
}

// Handle is the lambda.Start entry point.
func (a *Adapter) Handle(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return a.proxy.ProxyWithContext(ctx, event)
}

// invocationHeaders fills in what the info page and the request ID
// middleware read. Values sent by the caller win.
func invocationHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if host := r.Header.Get("Host"); host != "" {
			r.Host = host
		}
		if r.Header.Get("X-Forwarded-Proto") == "" {
			r.Header.Set("X-Forwarded-Proto", "https")
		}
		if r.Header.Get("X-Request-Id") == "" {
			if lc, ok := lambdacontext.FromContext(r.Context()); ok && lc.AwsRequestID != "" {
				r.Header.Set("X-Request-Id", lc.AwsRequestID)
			}
		}
		next.ServeHTTP(w, r)
	})
}
