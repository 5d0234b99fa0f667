package main

import _ "embed"

// embeddedConfig holds the YAML configuration embedded at build time.
// default_config.yaml is a staging file that firmware projects may overwrite
// with their own page list before compiling pagegen.
//
//go:embed default_config.yaml
var embeddedConfig []byte
