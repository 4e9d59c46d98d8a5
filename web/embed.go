package web

import "embed"

// FS holds the page templates under templates/ and assets under static/.
//
//go:embed templates/*.html static/*
var FS embed.FS
