package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into the config struct.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrConfigNotLoaded is returned when a config could not be read back from the cache.
	ErrConfigNotLoaded = errors.New("configuration has not been loaded")

	// ErrNilPointer is returned when a nil pointer is provided to a loader.
	ErrNilPointer = errors.New("nil pointer provided to config loader")

	// ErrLoadingEnvFile is returned when an explicitly requested .env file cannot be applied.
	ErrLoadingEnvFile = errors.New("failed to load env file")

	// ErrReadingFile is returned when a configuration file cannot be read.
	ErrReadingFile = errors.New("failed to read config file")

	// ErrDecodingFile is returned when a configuration file is not valid YAML for the target type.
	ErrDecodingFile = errors.New("failed to decode config file")
)
