package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/config"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/httpapi"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/offline"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/session"
)

const environmentKeyCacheVersion = "CACHE_VERSION"

type renderTarget struct {
	method     string
	path       string
	handler    gin.HandlerFunc
	outputPath string
}

func parseDotenvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, rawValue, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		rawValue = strings.TrimSpace(rawValue)
		if key == "" {
			continue
		}
		rawValue = strings.Trim(rawValue, "\"'")
		values[key] = rawValue
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func renderHTML(handler gin.HandlerFunc, method string, path string) (int, []byte) {
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Request = httptest.NewRequest(method, path, nil)
	handler(context)
	return recorder.Code, recorder.Body.Bytes()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// exportOfflineShell writes the service worker and every cached shell asset under outputDir.
func exportOfflineShell(cacheName string, outputDir string) error {
	worker, workerErr := offline.NewWorker(offline.WorkerOptions{
		CacheName: cacheName,
		Upstream:  offline.NewEmbeddedFetcher(),
		Storage:   offline.NewMemoryStorage(),
	})
	if workerErr != nil {
		return workerErr
	}
	ctx := context.Background()
	if installErr := worker.Install(ctx); installErr != nil {
		return installErr
	}

	script, scriptErr := worker.ServiceWorkerScript()
	if scriptErr != nil {
		return scriptErr
	}
	if err := writeFile(filepath.Join(outputDir, strings.TrimPrefix(httpapi.ServiceWorkerPath, "/")), script); err != nil {
		return err
	}
	for _, assetPath := range worker.Paths() {
		if assetPath == offline.HomePath {
			continue
		}
		response, serveErr := worker.Serve(ctx, assetPath)
		if serveErr != nil {
			return serveErr
		}
		if err := writeFile(filepath.Join(outputDir, filepath.FromSlash(strings.TrimPrefix(assetPath, "/"))), response.Asset.Body); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	var envFilePath string
	var outputDir string
	pflag.StringVar(&envFilePath, "env-file", "", "optional env file overriding CACHE_VERSION")
	pflag.StringVar(&outputDir, "out", "public", "directory to write static pages and the offline shell into")
	pflag.Parse()

	configuration := config.Defaults()
	if envFilePath != "" {
		envValues, envErr := parseDotenvFile(envFilePath)
		if envErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "read %s: %v\n", envFilePath, envErr)
			os.Exit(1)
		}
		if rawVersion := strings.TrimSpace(envValues[environmentKeyCacheVersion]); rawVersion != "" {
			version, parseErr := strconv.Atoi(rawVersion)
			if parseErr != nil || version <= 0 {
				_, _ = fmt.Fprintf(os.Stderr, "invalid %s in env file: %q\n", environmentKeyCacheVersion, rawVersion)
				os.Exit(1)
			}
			configuration.CacheVersion = version
		}
	}

	renderer := httpapi.NewPageRenderer(logger, nil)
	homeHandlers := httpapi.NewHomePageHandlers(logger, renderer)
	loginHandlers := httpapi.NewLoginPageHandlers(renderer, nil)

	targets := []renderTarget{
		{
			method:     http.MethodGet,
			path:       session.HomePath,
			handler:    homeHandlers.RenderHome,
			outputPath: filepath.Join(outputDir, "home/index.html"),
		},
		{
			method:     http.MethodGet,
			path:       session.AboutPath,
			handler:    homeHandlers.RenderAbout,
			outputPath: filepath.Join(outputDir, "about/index.html"),
		},
		{
			method:     http.MethodGet,
			path:       session.LoginPath,
			handler:    loginHandlers.RenderLogin,
			outputPath: filepath.Join(outputDir, "login/index.html"),
		},
	}

	for _, target := range targets {
		status, payload := renderHTML(target.handler, target.method, target.path)
		if status < 200 || status >= 300 {
			_, _ = fmt.Fprintf(os.Stderr, "render %s returned %d\n", target.path, status)
			os.Exit(1)
		}
		payload = bytes.ReplaceAll(payload, []byte("\r\n"), []byte("\n"))
		if err := writeFile(target.outputPath, payload); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "write %s: %v\n", target.outputPath, err)
			os.Exit(1)
		}
	}

	if err := exportOfflineShell(configuration.CacheName(), outputDir); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "export offline shell: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("static frontend generated in", outputDir)
}
