package offline

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	HomePath     = "/"
	HomeDocument = "/index.html"

	maxUpstreamBodyBytes = 8 << 20
)

var ErrAssetNotFound = errors.New("offline_asset_not_found")

//go:embed assets
var embeddedAssets embed.FS

// Asset is one cached response.
type Asset struct {
	Path        string
	ContentType string
	Body        []byte
}

// Fetcher loads an asset from the upstream origin.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (Asset, error)
}

// FSFetcher serves the shell files from a filesystem. "/" and "/index.html" map to index.html and
// "/assets/..." maps into the assets tree.
type FSFetcher struct {
	files fs.FS
}

// NewEmbeddedFetcher serves the shell compiled into the binary.
func NewEmbeddedFetcher() *FSFetcher {
	files, subErr := fs.Sub(embeddedAssets, "assets")
	if subErr != nil {
		panic(subErr)
	}
	return NewFSFetcher(files)
}

func NewFSFetcher(files fs.FS) *FSFetcher {
	return &FSFetcher{files: files}
}

func (fetcher *FSFetcher) Fetch(_ context.Context, requestPath string) (Asset, error) {
	name := fileName(requestPath)
	if name == "" {
		return Asset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, requestPath)
	}
	body, readErr := fs.ReadFile(fetcher.files, name)
	if errors.Is(readErr, fs.ErrNotExist) {
		return Asset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, requestPath)
	}
	if readErr != nil {
		return Asset{}, readErr
	}
	return Asset{Path: requestPath, ContentType: contentTypeOf(name, body), Body: body}, nil
}

func fileName(requestPath string) string {
	if requestPath == HomePath {
		return strings.TrimPrefix(HomeDocument, "/")
	}
	cleaned := path.Clean(requestPath)
	if !strings.HasPrefix(cleaned, "/") || cleaned == "/" {
		return ""
	}
	cleaned = strings.TrimPrefix(cleaned, "/")
	return strings.TrimPrefix(cleaned, "assets/")
}

func contentTypeOf(name string, body []byte) string {
	if byExtension := mime.TypeByExtension(path.Ext(name)); byExtension != "" {
		return byExtension
	}
	if path.Ext(name) == ".webmanifest" {
		return "application/manifest+json"
	}
	return mimetype.Detect(body).String()
}

// HTTPFetcher loads assets from a static origin such as a CDN.
type HTTPFetcher struct {
	origin string
	client *http.Client
}

func NewHTTPFetcher(origin string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{origin: strings.TrimRight(origin, "/"), client: client}
}

func (fetcher *HTTPFetcher) Fetch(ctx context.Context, requestPath string) (Asset, error) {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, fetcher.origin+requestPath, nil)
	if requestErr != nil {
		return Asset{}, requestErr
	}
	response, responseErr := fetcher.client.Do(request)
	if responseErr != nil {
		return Asset{}, fmt.Errorf("fetch %s: %w", requestPath, responseErr)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return Asset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, requestPath)
	}
	if response.StatusCode != http.StatusOK {
		return Asset{}, fmt.Errorf("fetch %s: status %d", requestPath, response.StatusCode)
	}
	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxUpstreamBodyBytes))
	if readErr != nil {
		return Asset{}, fmt.Errorf("read %s: %w", requestPath, readErr)
	}
	contentType := response.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}
	return Asset{Path: requestPath, ContentType: contentType, Body: body}, nil
}
