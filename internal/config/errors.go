package config

import "errors"

var (
	ErrConfigFileNotFound    = errors.New("config file not found")
	ErrConfigFileRead        = errors.New("failed to read config file")
	ErrConfigInvalid         = errors.New("invalid config file")
	ErrBackingPathEmpty      = errors.New("backing_path must not be empty")
	ErrListenAddressEmpty    = errors.New("listen_address must not be empty")
	ErrMaxConnectionsInvalid = errors.New("max_connections must be positive")
)
