// Package config loads typed configuration for notifykit services.
//
// Environment configuration is parsed with github.com/caarlos0/env into
// structs tagged with `env:"..."`. Each struct type is parsed once and cached,
// so packages can call Load from their constructors without re-reading the
// environment. A .env file in the working directory is applied on first use
// (missing file is not an error); LoadEnv applies additional files.
//
// File-based configuration, such as the seed list of external notification
// channels, is read with LoadYAML. ${VAR} references inside the file are
// expanded from the environment before decoding, which keeps provider
// credentials out of the file itself.
//
//	var cfg struct {
//	    JWTSecret string        `env:"REALTIME_JWT_SECRET,required"`
//	    Timeout   time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"15s"`
//	}
//	config.MustLoad(&cfg)
//
//	var seeds []channels.Channel
//	if err := config.LoadYAML("channels.yaml", &seeds); err != nil {
//	    return err
//	}
package config
