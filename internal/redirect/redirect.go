// Package redirect serves poster redirects keyed by coherency tokens.
//
// The endpoint's contract with embedding pages is that it always answers
// with a redirect or an image body, never an error status: failures and
// empty stores degrade to canned fallback images.
package redirect

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/imagefork/redirect/internal/cache"
	"github.com/imagefork/redirect/internal/metrics"
	"github.com/imagefork/redirect/internal/posters"
	"github.com/imagefork/redirect/internal/token"
)

// Selector is the read surface of the poster store used during resolution
type Selector interface {
	SelectRandomServable(ctx context.Context) (int64, bool, error)
	ImageURL(ctx context.Context, id int64, kind posters.Kind) (string, bool, error)
}

// Handler resolves redirect requests
type Handler struct {
	store   Selector
	cache   cache.TokenCache
	ttl     time.Duration
	timeout time.Duration
	log     zerolog.Logger
}

// NewHandler creates a redirect handler. ttl is the coherency token
// keepalive window; timeout bounds each request's store and cache calls.
func NewHandler(store Selector, tokenCache cache.TokenCache, ttl, timeout time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		store:   store,
		cache:   tokenCache,
		ttl:     ttl,
		timeout: timeout,
		log:     log,
	}
}

// Routes registers the redirect endpoints on r
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Serve)
	r.Get("/{token}", h.Serve)
}

// channelKind maps the channel query param to a texture kind. Unknown or
// missing values fall back to albedo, matching the single-texture clients
// that never send the param.
func channelKind(r *http.Request) posters.Kind {
	switch r.URL.Query().Get("channel") {
	case "e":
		return posters.KindEmissive
	case "n":
		return posters.KindNormal
	default:
		return posters.KindAlbedo
	}
}

// Serve handles one redirect request
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	kind := channelKind(r)
	tok := chi.URLParam(r, "token")

	id, found, err := h.resolveID(ctx, tok)
	if err != nil {
		metrics.PosterStoreErrors.Inc()
		h.log.Warn().Err(err).Str("channel", string(kind)).Msg("redirect resolution failed")
		metrics.RecordRedirectOutcome("error")
		errImg.write(w)
		return
	}
	if !found {
		metrics.RecordRedirectOutcome("safe")
		noPosterImage(kind).write(w)
		return
	}

	url, ok, err := h.store.ImageURL(ctx, id, kind)
	if err != nil {
		metrics.PosterStoreErrors.Inc()
		h.log.Warn().Err(err).Int64("poster", id).Msg("poster image lookup failed")
		metrics.RecordRedirectOutcome("error")
		errImg.write(w)
		return
	}
	if !ok {
		// The poster exists but has no image for this channel, or it was
		// deleted between selection and lookup. Both are benign.
		metrics.RecordRedirectOutcome("no_texture")
		noTextureImage(kind).write(w)
		return
	}

	metrics.RecordRedirectOutcome("redirect")
	http.Redirect(w, r, url, http.StatusFound)
}

// resolveID picks the poster id for the request. Tokenless requests skip
// the cache entirely; repeated consistency is only promised per token.
func (h *Handler) resolveID(ctx context.Context, tok string) (int64, bool, error) {
	if tok == "" {
		return h.store.SelectRandomServable(ctx)
	}
	return h.cache.Resolve(ctx, token.Hash(tok), h.ttl, h.store.SelectRandomServable)
}
