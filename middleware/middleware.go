// Package middleware wraps channel handlers with cross-cutting behaviour.
//
// Chain(A, B, C)(h) gives A(B(C(h))): A sees the call first and the result
// last.
package middleware

import "native-binder/channel"

type Middleware func(next channel.Handler) channel.Handler

// Chain combines middlewares into one, applied in the order given.
func Chain(middlewares ...Middleware) Middleware {
	return func(next channel.Handler) channel.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
