package config

import (
	"os"
	"strings"
)

const (
	appEnvVar = "APP_ENV"

	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"

	environmentDevelopment = EnvironmentDevelopment
	environmentStaging     = EnvironmentStaging
	environmentProduction  = EnvironmentProduction
)

var environmentAliases = map[string]string{
	"dev":   environmentDevelopment,
	"local": environmentDevelopment,
	"stage": environmentStaging,
	"stg":   environmentStaging,
	"prod":  environmentProduction,
	"prd":   environmentProduction,
}

// AppEnvironment returns APP_ENV normalised through the alias table, or
// development when unset.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// resolveEnvSpecificPath swaps the default config path for the file of the
// current environment. An explicitly chosen path is kept.
func resolveEnvSpecificPath(path, defaultPath string, envPaths map[string]string) string {
	if path == "" {
		path = defaultPath
	}
	envPath, ok := envPaths[AppEnvironment()]
	if ok && (path == defaultPath || path == envPath) {
		return envPath
	}
	return path
}

// IsProductionLike reports whether env is staging or production. Such
// gateways always log JSON and do not fall back to built-in defaults when the
// config file is missing.
func IsProductionLike(env string) bool {
	return env == environmentProduction || env == environmentStaging
}
