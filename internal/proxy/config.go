package proxy

import "github.com/mprokhorov/jobsched"

// Config mirrors the teacher's reflection-driven `default`/`validate`
// struct-tag convention (see config.go / SPEC_FULL.md's "Ambient
// Configuration" section) for the proxy's CLI surface (§6):
// `./proxy PORT [TELEMETRY {0|1} [BLACKLIST_PATH [LOG_LEVEL]]]`.
type Config struct {
	Port          int    `validate:"required"`
	Telemetry     bool
	BlacklistPath string
	LogLevel      string `default:"info"`
}

// Finalize applies defaults and validates required fields, exiting the
// process (via jobsched.Validate) exactly as the teacher's Worker.Run
// does before use.
func (c *Config) Finalize() {
	jobsched.SetDefaultValues(c)
	jobsched.Validate(c)
}
