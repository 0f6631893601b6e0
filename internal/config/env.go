package config

import "os"

// osEnviron is a seam so tests can supply a fixed environment instead
// of the process's real one.
var osEnviron = os.Environ
