package config

import (
	"fmt"
	"net"
	"strings"
)

func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("tls config: %w", err)
	}

	if err := c.validateConsole(); err != nil {
		return fmt.Errorf("console config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if net.ParseIP(c.Server.Host) == nil && c.Server.Host != "localhost" {
		return fmt.Errorf("invalid host: %s (must be an IP address or localhost)", c.Server.Host)
	}

	if c.Server.ReadHeaderTimeout < 0 {
		return fmt.Errorf("read_header_timeout must not be negative")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	return nil
}

func (c *Config) validateTLS() error {
	if c.TLS.ProxyFile != "" && (c.TLS.CertFile != "" || c.TLS.KeyFile != "") {
		return fmt.Errorf("proxy_file and cert_file/key_file are mutually exclusive")
	}

	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file must be set together")
	}

	return nil
}

func (c *Config) validateConsole() error {
	output := strings.ToLower(c.Console.Output)
	if output != "stdout" && output != "stderr" {
		return fmt.Errorf("invalid output: %s (must be stdout or stderr)", c.Console.Output)
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" {
		return fmt.Errorf("invalid level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Logging.Format)
	}

	output := strings.ToLower(c.Logging.Output)
	if output != "stdout" && output != "stderr" {
		return fmt.Errorf("invalid output: %s (must be stdout or stderr)", c.Logging.Output)
	}

	return nil
}
