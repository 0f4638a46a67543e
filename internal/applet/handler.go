// SPDX-License-Identifier: MPL-2.0

package applet

import (
	"context"
	"io"
	"os"

	"mvdan.cc/sh/v3/interp"
)

type (
	// HandlerContext provides the I/O and environment an applet runs with.
	HandlerContext struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Dir is the working directory relative paths resolve against.
		Dir string
		// LookupEnv retrieves environment variables.
		LookupEnv func(string) (string, bool)
	}

	handlerContextKey struct{}
)

// ExtractHandlerContext extracts the HandlerContext from mvdan/sh's exec
// handler context.
func ExtractHandlerContext(ctx context.Context) *HandlerContext {
	hc := interp.HandlerCtx(ctx)
	return &HandlerContext{
		Stdin:  hc.Stdin,
		Stdout: hc.Stdout,
		Stderr: hc.Stderr,
		Dir:    hc.Dir,
		LookupEnv: func(name string) (string, bool) {
			v := hc.Env.Get(name)
			return v.Str, v.Set
		},
	}
}

// WithHandlerContext stores a HandlerContext in the context.
func WithHandlerContext(ctx context.Context, hc *HandlerContext) context.Context {
	return context.WithValue(ctx, handlerContextKey{}, hc)
}

// WithProcessContext attaches the process stdio, working directory and
// environment, for applets invoked outside the shell.
func WithProcessContext(ctx context.Context) context.Context {
	dir, err := os.Getwd()
	if err != nil {
		dir = "/"
	}
	return WithHandlerContext(ctx, &HandlerContext{
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Dir:       dir,
		LookupEnv: os.LookupEnv,
	})
}

// GetHandlerContext retrieves the HandlerContext from the context.
// A value stored with WithHandlerContext wins; otherwise it is extracted
// from mvdan/sh's handler context.
func GetHandlerContext(ctx context.Context) *HandlerContext {
	if hc, ok := ctx.Value(handlerContextKey{}).(*HandlerContext); ok {
		return hc
	}
	return ExtractHandlerContext(ctx)
}
