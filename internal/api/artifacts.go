package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/ratesheet/pkg/handlers"
	"github.com/JaimeStill/ratesheet/pkg/middleware"
	"github.com/JaimeStill/ratesheet/pkg/routes"
	"github.com/JaimeStill/ratesheet/pkg/storage"
)

// artifactHandler browses the caller's extraction artifacts directly in the
// artifact store. Keys are relative to the tenant's artifact root.
type artifactHandler struct {
	store       storage.System
	logger      *slog.Logger
	prefix      string
	maxListSize int32
}

func newArtifactHandler(
	store storage.System,
	logger *slog.Logger,
	prefix string,
	maxListSize int32,
) *artifactHandler {
	return &artifactHandler{
		store:       store,
		logger:      logger.With("handler", "artifacts"),
		prefix:      strings.Trim(prefix, "/"),
		maxListSize: maxListSize,
	}
}

func (h *artifactHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/artifacts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.list},
			{Method: "GET", Pattern: "/download/{key...}", Handler: h.download},
			{Method: "GET", Pattern: "/{key...}", Handler: h.find},
		},
	}
}

// root returns the tenant's artifact root with a trailing slash.
func (h *artifactHandler) root(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, middleware.ErrUnauthenticated)
		return "", false
	}

	tenantID, err := uuid.Parse(id.TenantID)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, middleware.ErrUnauthenticated)
		return "", false
	}

	return h.prefix + "/" + tenantID.String() + "/", true
}

// relative rejects keys and prefixes that would escape the tenant root.
func relative(key string) error {
	for seg := range strings.SplitSeq(key, "/") {
		if seg == ".." {
			return storage.ErrInvalidKey
		}
	}
	return nil
}

func (h *artifactHandler) list(w http.ResponseWriter, r *http.Request) {
	root, ok := h.root(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()

	maxResults, err := storage.ParseMaxResults(q.Get("max_results"), h.maxListSize)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	prefix, marker := q.Get("prefix"), q.Get("marker")
	if err := errors.Join(relative(prefix), relative(marker)); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if marker != "" {
		marker = root + marker
	}

	result, err := h.store.List(r.Context(), root+prefix, marker, maxResults)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	for i := range result.Blobs {
		result.Blobs[i].Key = strings.TrimPrefix(result.Blobs[i].Key, root)
	}
	result.NextMarker = strings.TrimPrefix(result.NextMarker, root)

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *artifactHandler) find(w http.ResponseWriter, r *http.Request) {
	root, ok := h.root(w, r)
	if !ok {
		return
	}

	key := r.PathValue("key")
	if err := relative(key); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	meta, err := h.store.Find(r.Context(), root+key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	meta.Key = key

	handlers.RespondJSON(w, http.StatusOK, meta)
}

func (h *artifactHandler) download(w http.ResponseWriter, r *http.Request) {
	root, ok := h.root(w, r)
	if !ok {
		return
	}

	key := r.PathValue("key")
	if err := relative(key); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.store.Download(r.Context(), root+key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)
	if result.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.ContentLength, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, result.Body)
}
