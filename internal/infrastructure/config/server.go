package config

import (
	"net"
	"strconv"
	"time"
)

// ServerConfig holds the operator HTTP surface settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return hostPort(c.Host, c.Port)
}

// DaemonConfig holds supervisor process settings
type DaemonConfig struct {
	// PID file location for single-instance enforcement
	PIDFile string `mapstructure:"pid_file"`

	// Graceful shutdown drain budget
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
