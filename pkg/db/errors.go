package db

import "errors"

var errNoDatabaseConfig = errors.New("database configuration is required")
