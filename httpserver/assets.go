package httpserver

import (
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strings"

	"github.com/creamcroissant/servekit/httperror"
	"github.com/go-chi/chi/v5"
)

const defaultDevServerURL = "http://localhost:5173"

// assetHandler serves the embedded frontend bundle: index.html at the root
// and for any unmatched path (SPA fallback), plus files under assets/.
type assetHandler struct {
	bundle fs.FS
	logger *slog.Logger
}

func newAssetHandler(bundle fs.FS, logger *slog.Logger) *assetHandler {
	return &assetHandler{bundle: bundle, logger: logger}
}

func (h *assetHandler) register(r chi.Router) {
	r.Get("/", h.serveIndex)
	r.Get("/assets/*", h.serveAsset)
	r.NotFound(h.serveIndex)
}

func (h *assetHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.bundle, "index.html")
	if err != nil {
		httperror.Write(w, h.logger, httperror.AssetNotFound("index.html"))
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write(data)
}

func (h *assetHandler) serveAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		httperror.Write(w, h.logger, httperror.AssetNotFound(name))
		return
	}

	data, err := fs.ReadFile(h.bundle, path.Join("assets", clean))
	if err != nil {
		httperror.Write(w, h.logger, httperror.AssetNotFound(name))
		return
	}

	contentType := mime.TypeByExtension(path.Ext(clean))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

// newDevProxy forwards unmatched traffic to the frontend dev server so
// development builds get hot reload instead of the embedded bundle.
func newDevProxy(target *url.URL, logger *slog.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("dev server proxy failed", "target", target.String(), "error", err)
		httperror.Write(w, logger, httperror.Wrap(err))
	}
	return proxy
}
