// Package web embeds the browser control panel.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed dist/*
var staticFiles embed.FS

// GetFileSystem returns the embedded filesystem with the dist folder as root.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "dist")
}

// RegisterStaticRoutes serves the panel at / and its assets. API routes
// must be registered first.
func RegisterStaticRoutes(e *echo.Echo) error {
	staticFS, err := GetFileSystem()
	if err != nil {
		return err
	}

	e.GET("/", func(c echo.Context) error {
		return serveIndexHTML(c, staticFS)
	})
	e.GET("/assets/*", echo.WrapHandler(http.FileServer(http.FS(staticFS))))
	return nil
}

func serveIndexHTML(c echo.Context, staticFS fs.FS) error {
	content, err := fs.ReadFile(staticFS, "index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "index.html not found")
	}
	return c.HTMLBlob(http.StatusOK, content)
}
