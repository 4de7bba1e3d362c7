package web

import (
	"embed"
)

// staticFiles holds the embedded panel page.
//
//go:embed static/*
var staticFiles embed.FS
