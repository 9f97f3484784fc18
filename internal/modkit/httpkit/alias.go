// Package httpkit re-exports the platform http helpers modules use,
// so modules never import internal/platform/net/http directly
package httpkit

import (
	"net/http"

	phttp "inquirysync/internal/platform/net/http"
	"inquirysync/internal/platform/net/http/bind"
)

type (
	// Envelope is the transport envelope type
	Envelope = phttp.Envelope

	// Response is the HTTP response type
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is a re-export of the platform router seam
	Router = phttp.Router

	// JSONOptions controls body parsing
	JSONOptions = bind.JSONOptions
)

// OK returns a 200 response
func OK(data any) Response { return phttp.OK(data) }

// Created returns a 201 response
func Created(data any) Response { return phttp.Created(data) }

// Error returns a response that maps an error to status and envelope
func Error(err error) Response { return phttp.Error(err) }

// QueryInt reads an integer query parameter, def when absent
func QueryInt(r *http.Request, key string, def int) (int, error) { return bind.QueryInt(r, key, def) }

// QueryString reads a trimmed query parameter
func QueryString(r *http.Request, key string) string { return bind.QueryString(r, key) }

// Handle adapts a Response-returning function
func Handle(fn func(*http.Request) Response) Handler { return phttp.Handle(fn) }
