// Package jwt issues and verifies HS256 tokens that identify users of the
// notification API and its real-time channel.
//
// Service signs any JSON-serialisable claims; Claims is the shape used by
// notifykit and carries the user id together with the role and department
// that drive room membership. Middleware verifies a token on each request
// and stores the Claims in the request context, while Authenticate performs
// the same check for handlers that must decide before responding, such as a
// websocket upgrade.
//
//	svc, _ := jwt.NewFromString(os.Getenv("REALTIME_JWT_SECRET"))
//	token, _ := svc.Issue("u-1", "admin", "ops", time.Hour)
//
//	r.With(jwt.Middleware(svc)).Get("/api/notifications", h)
//
//	claims, ok := jwt.GetClaims(r.Context())
package jwt
