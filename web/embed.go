// Package web holds the orbit viewer served under /viz/. It draws the
// ecliptic plane from top down and animates rows read from the SSE
// position stream.
package web

import "embed"

// Content holds the embedded viewer files (index.html, app.js, styles.css).
//
//go:embed index.html app.js styles.css
var Content embed.FS
