// Package ui holds the HTML templates rendered by the web server.
package ui

import "embed"

// Templates contains templates/*.html. Every page is parsed together with
// base.html, which defines the shared layout and the history sidebar.
//
//go:embed templates/*.html
var Templates embed.FS
