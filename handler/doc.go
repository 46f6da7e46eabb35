// Package handler provides typed HTTP handlers: a request struct is bound by
// a chain of binders, the handler returns a Response, and errors are
// rendered as a JSON envelope with a status taken from HTTPError,
// ValidationError or the binder error kind.
//
//	type listRequest struct {
//		Limit  int  `query:"limit"`
//		Unread bool `query:"unread"`
//	}
//
//	r.Get("/items", handler.Wrap(
//		func(ctx handler.Context, req listRequest) handler.Response {
//			return handler.JSON(items, handler.WithJSONMeta(map[string]any{"limit": req.Limit}))
//		},
//		handler.WithBinders[handler.Context, listRequest](binder.BindQuery()),
//		handler.WithErrorHandler[handler.Context, listRequest](handler.NewErrorHandler[handler.Context](log)),
//	))
//
// Custom contexts are supported through WithContextFactory, and Decorators
// wrap the typed function for concerns like authorization.
package handler
