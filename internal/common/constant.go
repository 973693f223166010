package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests
// and the equivalent metadata key on gRPC calls.
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the access token in AuthorizationHeaderName.
const BearerPrefix = "Bearer "
