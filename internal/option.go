package internal

import (
	"io"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	version string
	stdin   io.Reader
	stdout  io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithStdio overrides the streams used by the MCP stdio transport.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(a *application) {
		a.stdin = in
		a.stdout = out
	}
}

func newApplication(opts []Option) *application {
	app := &application{version: "dev", stdin: os.Stdin, stdout: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	return app
}
