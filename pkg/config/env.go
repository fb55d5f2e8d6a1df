package config

import "strings"

// Deployment environments accepted in server.environment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// ProductionLike reports whether environment requires hardened settings:
// no localhost backends and no development secrets.
func ProductionLike(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case EnvStaging, EnvProduction:
		return true
	}
	return false
}
