package offline

import (
	"bytes"
	"encoding/json"
	"text/template"
)

const ServiceWorkerContentType = "text/javascript; charset=utf-8"

var serviceWorkerTemplate = template.Must(template.New("sw.js").Parse(`const CACHE_NAME = {{ .CacheName }};
const urlsToCache = {{ .Paths }};

self.addEventListener('install', event => {
  event.waitUntil(
    caches.open(CACHE_NAME).then(cache => cache.addAll(urlsToCache))
  );
});

self.addEventListener('activate', event => {
  event.waitUntil(
    caches.keys().then(names => Promise.all(
      names.filter(name => name !== CACHE_NAME).map(name => caches.delete(name))
    ))
  );
});

self.addEventListener('fetch', event => {
  event.respondWith(
    caches.match(event.request).then(cached => {
      if (cached) {
        return cached;
      }
      return fetch(event.request).catch(() => caches.match('{{ .HomeDocument }}'));
    })
  );
});
`))

// ServiceWorkerScript renders the browser sw.js for the worker's generation and allow-list.
func (worker *Worker) ServiceWorkerScript() ([]byte, error) {
	cacheName, nameErr := json.Marshal(worker.cacheName)
	if nameErr != nil {
		return nil, nameErr
	}
	paths, pathsErr := json.Marshal(worker.paths)
	if pathsErr != nil {
		return nil, pathsErr
	}
	var buffer bytes.Buffer
	renderErr := serviceWorkerTemplate.Execute(&buffer, struct {
		CacheName    string
		Paths        string
		HomeDocument string
	}{
		CacheName:    string(cacheName),
		Paths:        string(paths),
		HomeDocument: HomeDocument,
	})
	if renderErr != nil {
		return nil, renderErr
	}
	return buffer.Bytes(), nil
}
