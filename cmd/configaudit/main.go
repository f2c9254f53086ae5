package main

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/config"
)

const (
	defaultComposePath = "docker-compose.yml"

	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyAPIBaseURL         = "API_BASE_URL"
	environmentKeySessionSecret      = "SESSION_SECRET"
	environmentKeyPreferenceDriver   = "PREFS_DRIVER"
	environmentKeyRedisAddress       = "REDIS_ADDR"
	environmentKeyDefaultLanguage    = "DEFAULT_LANGUAGE"
	environmentKeyMaxUploadBytes     = "MAX_UPLOAD_BYTES"
	environmentKeyRequestTimeout     = "REQUEST_TIMEOUT"
	environmentKeyChatCooldown       = "CHAT_COOLDOWN"
	environmentKeyCacheVersion       = "CACHE_VERSION"
	environmentKeyStaticOriginURL    = "STATIC_ORIGIN_URL"
	environmentKeyCORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"

	localHostName    = "localhost"
	loopbackAddress  = "127.0.0.1"
	corsWildcard     = "*"
	listSeparator    = ","
	redisServicePort = "6379"
)

var errAuditFailed = errors.New("config_audit_failed")

// applicationKeys mark a compose service as a RuralAssist server.
var applicationKeys = []string{environmentKeySessionSecret, environmentKeyAPIBaseURL, environmentKeyPreferenceDriver}

type stringList []string

func (list *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*list = nil
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		value := strings.TrimSpace(node.Value)
		if value == "" {
			*list = nil
			return nil
		}
		*list = []string{value}
		return nil
	case yaml.SequenceNode:
		entries := make([]string, 0, len(node.Content))
		for _, child := range node.Content {
			if child == nil {
				continue
			}
			if value := strings.TrimSpace(child.Value); value != "" {
				entries = append(entries, value)
			}
		}
		*list = entries
		return nil
	default:
		return fmt.Errorf("unsupported yaml node kind %d for list", node.Kind)
	}
}

// environmentMap accepts both the mapping and the KEY=value list forms of compose environment.
type environmentMap map[string]string

func (environment *environmentMap) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*environment = nil
		return nil
	}
	normalized := make(map[string]string)
	switch node.Kind {
	case yaml.MappingNode:
		decoded := make(map[string]string)
		if err := node.Decode(&decoded); err != nil {
			return err
		}
		for key, value := range decoded {
			normalized[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	case yaml.SequenceNode:
		var decoded []string
		if err := node.Decode(&decoded); err != nil {
			return err
		}
		for _, entry := range decoded {
			key, value, _ := strings.Cut(strings.TrimSpace(entry), "=")
			if key = strings.TrimSpace(key); key != "" {
				normalized[key] = strings.TrimSpace(value)
			}
		}
	default:
		return fmt.Errorf("unsupported yaml node kind %d for environment", node.Kind)
	}
	*environment = normalized
	return nil
}

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	EnvFile     stringList     `yaml:"env_file"`
	Environment environmentMap `yaml:"environment"`
	Ports       stringList     `yaml:"ports"`
	Image       string         `yaml:"image"`
	OtherKeys   map[string]any `yaml:",inline"`
}

type auditResult struct {
	errors   []string
	warnings []string
}

func (result *auditResult) addError(message string, arguments ...any) {
	result.errors = append(result.errors, fmt.Sprintf(message, arguments...))
}

func (result *auditResult) addWarning(message string, arguments ...any) {
	result.warnings = append(result.warnings, fmt.Sprintf(message, arguments...))
}

func (result auditResult) ok() bool {
	return len(result.errors) == 0
}

func main() {
	composePath := defaultComposePath
	if len(os.Args) > 1 {
		composePath = os.Args[1]
	}
	result := runAudit(composePath)
	sort.Strings(result.errors)
	sort.Strings(result.warnings)

	for _, warning := range result.warnings {
		_, _ = fmt.Fprintf(os.Stdout, "WARN: %s\n", warning)
	}
	for _, errorMessage := range result.errors {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %s\n", errorMessage)
	}
	if !result.ok() {
		_, _ = fmt.Fprintf(os.Stderr, "config-audit failed\n")
		os.Exit(1)
	}
	_, _ = fmt.Fprintf(os.Stdout, "config-audit OK\n")
}

func runAudit(composePath string) auditResult {
	var result auditResult

	composeDocument, readErr := os.ReadFile(composePath)
	if readErr != nil {
		result.addError("read compose file %s: %v", composePath, readErr)
		return result
	}
	var compose composeFile
	if decodeErr := yaml.Unmarshal(composeDocument, &compose); decodeErr != nil {
		result.addError("parse compose file %s: %v", composePath, decodeErr)
		return result
	}
	if len(compose.Services) == 0 {
		result.addError("compose file %s: no services defined", composePath)
		return result
	}

	composeDirectory := filepath.Dir(composePath)
	hostPortToService := make(map[string]string)
	serviceNames := make([]string, 0, len(compose.Services))
	for serviceName := range compose.Services {
		serviceNames = append(serviceNames, serviceName)
	}
	sort.Strings(serviceNames)

	applications := 0
	for _, serviceName := range serviceNames {
		service := compose.Services[serviceName]
		checkHostPortCollisions(serviceName, service.Ports, hostPortToService, &result)

		environment, envErr := loadServiceEnvironment(composeDirectory, serviceName, service.EnvFile, service.Environment, &result)
		if envErr != nil {
			result.addError("service %s: %v", serviceName, envErr)
			continue
		}
		if !isApplicationService(environment) {
			continue
		}
		applications++
		checkApplicationEnvironment(serviceName, environment, compose.Services, &result)
	}
	if applications == 0 {
		result.addError("compose file %s: no service sets %s", composePath, strings.Join(applicationKeys, " or "))
	}
	return result
}

func isApplicationService(environment map[string]string) bool {
	for _, key := range applicationKeys {
		if _, ok := environment[key]; ok {
			return true
		}
	}
	return false
}

func loadServiceEnvironment(composeDirectory string, serviceName string, envFiles []string, environment environmentMap, result *auditResult) (map[string]string, error) {
	merged := make(map[string]string)
	for _, envFile := range envFiles {
		resolvedPath := filepath.Clean(filepath.Join(composeDirectory, envFile))
		if _, statErr := os.Stat(resolvedPath); statErr != nil {
			result.addError("service %s: env_file %s is missing (%v)", serviceName, envFile, statErr)
			continue
		}
		values, duplicates, parseErr := parseDotEnv(resolvedPath)
		if parseErr != nil {
			return nil, fmt.Errorf("parse env_file %s: %w", envFile, parseErr)
		}
		for _, duplicate := range duplicates {
			result.addError("service %s: env_file %s defines %s more than once", serviceName, envFile, duplicate)
		}
		for key, value := range values {
			merged[key] = value
		}
	}
	for key, value := range environment {
		merged[key] = value
	}
	return merged, nil
}

func parseDotEnv(path string) (map[string]string, []string, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, nil, openErr
	}
	defer func() { _ = file.Close() }()

	entries := make(map[string]string)
	var duplicates []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		if _, already := entries[key]; already {
			duplicates = append(duplicates, key)
		}
		entries[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, nil, scanErr
	}
	return entries, uniqueStrings(duplicates), nil
}

// checkApplicationEnvironment resolves the server configuration the service would start with
// and reports what the server would reject or what only works outside a container.
func checkApplicationEnvironment(serviceName string, environment map[string]string, services map[string]composeService, result *auditResult) {
	configuration, parseErrs := applicationConfiguration(environment)
	for _, parseErr := range parseErrs {
		result.addError("service %s: %v", serviceName, parseErr)
	}
	if validateErr := configuration.Validate(); validateErr != nil {
		result.addError("service %s: %v", serviceName, validateErr)
	}

	if isLoopbackURL(configuration.APIBaseURL) {
		result.addWarning("service %s: %s=%s points at the container itself", serviceName, environmentKeyAPIBaseURL, configuration.APIBaseURL)
	}
	if configuration.StaticOriginURL != "" && isLoopbackURL(configuration.StaticOriginURL) {
		result.addWarning("service %s: %s=%s points at the container itself", serviceName, environmentKeyStaticOriginURL, configuration.StaticOriginURL)
	}
	for _, origin := range configuration.CORSAllowedOrigins {
		if origin == corsWildcard {
			result.addWarning("service %s: %s allows every origin, so API calls are sent without credentials", serviceName, environmentKeyCORSAllowedOrigins)
		}
	}
	if configuration.PreferenceDriver == config.PreferenceDriverRedis {
		checkRedisAddress(serviceName, configuration.RedisAddress, services, result)
	}
}

func checkRedisAddress(serviceName string, address string, services map[string]composeService, result *auditResult) {
	host, port, found := strings.Cut(address, ":")
	if !found {
		port = redisServicePort
	}
	if host == localHostName || host == loopbackAddress {
		result.addError("service %s: %s=%s is unreachable from the container", serviceName, environmentKeyRedisAddress, address)
		return
	}
	if _, defined := services[host]; !defined {
		result.addWarning("service %s: %s host %s is not a compose service", serviceName, environmentKeyRedisAddress, host)
	}
	if port != redisServicePort {
		result.addWarning("service %s: %s uses non-default port %s", serviceName, environmentKeyRedisAddress, port)
	}
}

// applicationConfiguration overlays the environment on the server defaults.
func applicationConfiguration(environment map[string]string) (config.Config, []error) {
	configuration := config.Defaults()
	var parseErrs []error
	if value, ok := environment[environmentKeyApplicationAddress]; ok {
		configuration.ApplicationAddress = value
	}
	if value, ok := environment[environmentKeyAPIBaseURL]; ok {
		configuration.APIBaseURL = value
	}
	configuration.SessionSecret = environment[environmentKeySessionSecret]
	if value, ok := environment[environmentKeyPreferenceDriver]; ok {
		configuration.PreferenceDriver = strings.ToLower(value)
	}
	if value, ok := environment[environmentKeyRedisAddress]; ok {
		configuration.RedisAddress = value
	}
	if value, ok := environment[environmentKeyDefaultLanguage]; ok {
		configuration.DefaultLanguage = value
	}
	if value, ok := environment[environmentKeyStaticOriginURL]; ok {
		configuration.StaticOriginURL = value
	}
	if value, ok := environment[environmentKeyCORSAllowedOrigins]; ok {
		configuration.CORSAllowedOrigins = splitList(value)
	}
	if value, ok := environment[environmentKeyMaxUploadBytes]; ok {
		parsed, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr != nil {
			parseErrs = append(parseErrs, fmt.Errorf("%w: %s=%q is not a number", errAuditFailed, environmentKeyMaxUploadBytes, value))
		} else {
			configuration.MaxUploadBytes = parsed
		}
	}
	if value, ok := environment[environmentKeyCacheVersion]; ok {
		parsed, parseErr := strconv.Atoi(value)
		if parseErr != nil {
			parseErrs = append(parseErrs, fmt.Errorf("%w: %s=%q is not a number", errAuditFailed, environmentKeyCacheVersion, value))
		} else {
			configuration.CacheVersion = parsed
		}
	}
	durations := []struct {
		key    string
		target *time.Duration
	}{
		{key: environmentKeyRequestTimeout, target: &configuration.RequestTimeout},
		{key: environmentKeyChatCooldown, target: &configuration.ChatCooldown},
	}
	for _, duration := range durations {
		value, ok := environment[duration.key]
		if !ok {
			continue
		}
		parsed, parseErr := time.ParseDuration(value)
		if parseErr != nil {
			parseErrs = append(parseErrs, fmt.Errorf("%w: %s=%q is not a duration", errAuditFailed, duration.key, value))
			continue
		}
		*duration.target = parsed
	}
	return configuration, parseErrs
}

func splitList(value string) []string {
	var entries []string
	for _, entry := range strings.Split(value, listSeparator) {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			entries = append(entries, trimmed)
		}
	}
	return entries
}

func isLoopbackURL(raw string) bool {
	parsed, parseErr := url.Parse(raw)
	if parseErr != nil {
		return false
	}
	host := parsed.Hostname()
	return host == localHostName || host == loopbackAddress
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return values
	}
	sort.Strings(values)
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if len(unique) == 0 || unique[len(unique)-1] != value {
			unique = append(unique, value)
		}
	}
	return unique
}

func checkHostPortCollisions(serviceName string, ports []string, hostPortToService map[string]string, result *auditResult) {
	for _, mapping := range ports {
		hostPort, ok := parseHostPort(strings.TrimSpace(mapping))
		if !ok {
			continue
		}
		if existingService, already := hostPortToService[hostPort]; already {
			result.addError("compose: host port %s is published by both %s and %s", hostPort, existingService, serviceName)
		} else {
			hostPortToService[hostPort] = serviceName
		}
	}
}

func parseHostPort(portMapping string) (string, bool) {
	parts := strings.Split(strings.Trim(portMapping, `"`), ":")
	if len(parts) < 2 {
		return "", false
	}
	hostPort := strings.TrimSpace(parts[len(parts)-2])
	if hostPort == "" {
		return "", false
	}
	for _, runeValue := range hostPort {
		if runeValue < '0' || runeValue > '9' {
			return "", false
		}
	}
	return hostPort, true
}
