// Package geoloqi provides a client for the Geoloqi location platform API.
//
// Geoloqi exposes places, layers, triggers and user locations over an OAuth2
// protected JSON API. This package handles the token lifecycle so callers can
// write plain GET and POST calls.
//
// # Architecture
//
// The package is organized into several components:
//
//   - Session: One credential plus one HTTP client, safe for concurrent use
//   - Config: Connection and behavior options, decodable from a raw map
//   - Credential: The OAuth2 token bundle with expiry bookkeeping
//   - Batch: Queues many calls and sends them in batch/run requests
//   - Errors: Structured error types and per-token error kinds
//
// # Usage
//
// Create a session with an access token and make calls:
//
//	session, err := geoloqi.NewSession(geoloqi.WithAccessToken("YOUR TOKEN"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	profile, err := session.Get(ctx, "account/profile", nil, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(profile.String("name"))
//
// With a client id and secret the session can complete the OAuth2 flow and
// renew expired tokens on its own:
//
//	session, _ := geoloqi.NewSession(geoloqi.WithConfig(geoloqi.Config{
//		ClientID:     "YOUR CLIENT ID",
//		ClientSecret: "YOUR CLIENT SECRET",
//	}))
//	url, _ := session.AuthorizeURL("https://example.com/callback")
//	// send the user to url, then with the code from the callback:
//	cred, err := session.GetAuth(ctx, code, "")
//
// # Token Renewal
//
// A credential whose expiry has passed is renewed before the next request.
// When the server rejects a token as expired the session renews once and
// retries the request once. Concurrent callers share a single renewal.
// Store Session.Auth after calls if the credential must survive restarts.
//
// # Error Handling
//
// The package defines several error types:
//
//   - ConfigError: Missing client id or secret, invalid options
//   - ArgumentError: An argument that cannot be satisfied
//   - ProtocolError: The API answered with something other than JSON
//   - APIError: An error reported by the server
//   - RenewalError: The retried request failed again after renewal
//
// With UseDynamicExceptions every server error token gets its own kind:
//
//	if errors.Is(err, geoloqi.KindFor("not_found")) {
//		// Handle missing resource
//	}
package geoloqi
