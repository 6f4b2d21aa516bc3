package redirect

import (
	_ "embed"
	"net/http"

	"github.com/imagefork/redirect/internal/posters"
)

// Fallback images are served with a 200 so embedding pages never render a
// broken-image icon, whatever went wrong behind the endpoint.

var (
	//go:embed assets/safe.png
	safeImage []byte

	//go:embed assets/error.png
	errorImage []byte

	//go:embed assets/black_pixel.png
	blackPixel []byte

	//go:embed assets/default_normal_pixel.png
	normalPixel []byte
)

// staticImage is an embedded canned image response
type staticImage struct {
	contentType string
	data        []byte
}

var (
	safe      = staticImage{contentType: "image/png", data: safeImage}
	errImg    = staticImage{contentType: "image/png", data: errorImage}
	blackImg  = staticImage{contentType: "image/png", data: blackPixel}
	normalImg = staticImage{contentType: "image/png", data: normalPixel}
)

// write sends the image bytes
func (i staticImage) write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", i.contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(i.data)
}

// noPosterImage is the fallback when no servable poster exists. Only the
// albedo channel shows the branded safe image; other channels degrade to
// neutral pixels so composited slots stay visually flat.
func noPosterImage(kind posters.Kind) staticImage {
	switch kind {
	case posters.KindNormal:
		return normalImg
	case posters.KindEmissive:
		return blackImg
	default:
		return safe
	}
}

// noTextureImage is the fallback when a poster exists but lacks the
// requested channel.
func noTextureImage(kind posters.Kind) staticImage {
	if kind == posters.KindNormal {
		return normalImg
	}
	return blackImg
}
