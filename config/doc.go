// Package config loads application settings from a TOML file.
//
// Missing keys keep their defaults. API keys may be supplied through the
// OPENAI_API_KEY and QDRANT_API_KEY environment variables, which take
// precedence over the file.
package config
