// Package authsdk is the Go client for the scrum0 dashboard session API.
//
// The dashboard process holds a single session. This client drives it over
// HTTP the same way the browser dashboard does:
//
//	c := authsdk.NewClient("http://localhost:8080")
//	state, err := c.SignIn(ctx, "alice@example.com", "secret1")
//	if err != nil {
//		var apiErr *authsdk.APIError
//		if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeInvalidCredentials {
//			// show apiErr.Description
//		}
//	}
//
// Watch streams every state change over a websocket until its context ends.
//
// The request and response types in types.go are shared with the server
// handlers, so they double as the wire contract.
package authsdk
