package api

import (
	"embed"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

//go:embed static/*
var embeddedUI embed.FS

func getEmbedFS() static.ServeFileSystem {
	fs, err := static.EmbedFolder(embeddedUI, "static")
	if err != nil {
		panic("api: failed to get embedded static filesystem: " + err.Error())
	}
	return fs
}

// mountOperatorPage serves a small static landing page at "/" linking to
// the health/stats/metrics/zones/swagger endpoints. Unlike a bundled SPA,
// there is exactly one page: an operator pointed at the API needs links,
// not a client-side app.
func mountOperatorPage(r *gin.Engine, logger *slog.Logger) {
	fs := getEmbedFS()
	r.Use(static.Serve("/", fs))

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.RequestURI, "/api") || strings.HasPrefix(c.Request.RequestURI, "/swagger") {
			return
		}
		index, err := fs.Open("index.html")
		if err != nil {
			if logger != nil {
				logger.Error("failed to open index.html", "error", err)
			}
			c.Status(http.StatusNotFound)
			return
		}
		defer index.Close()
		stat, _ := index.Stat()
		http.ServeContent(c.Writer, c.Request, "index.html", stat.ModTime(), index)
	})
}
