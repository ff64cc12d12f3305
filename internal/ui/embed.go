// Package ui embeds the built visitor page.
package ui

import "embed"

//go:embed dist
var DistFS embed.FS
