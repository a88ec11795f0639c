// Package config loads promptscan configuration from local and global YAML
// files, a .env file and environment variables. It is internal; CLI code
// maps flags and layers into service and engine configuration.
package config
