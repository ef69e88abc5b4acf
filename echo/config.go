// Package echo is a demonstration echo server and client driven by a single
// he.EventLoop, over TCP or UDP.
package echo

import (
	"fmt"
	"time"
)

const (
	TCP = "tcp"
	UDP = "udp"

	RoleServer = "server"
	RoleClient = "client"
)

const (
	DefaultPort              = 8888
	DefaultSetSize           = 1024
	DefaultCronMs            = 2000
	DefaultBacklog           = 511
	DefaultKeepAlive         = 300
	DefaultMaxAcceptsPerCall = 1000

	readBufferSize = 4096
	udpBatchSize   = 16
)

type Config struct {
	Proto string
	Role  string

	// Addr is the bind address for servers and the peer for clients.
	Addr string
	Port int
	IPv6 bool

	ReusePort         bool
	SetSize           int
	CronMs            int64
	Backlog           int
	KeepAlive         int // seconds
	MaxAcceptsPerCall int

	// Interactive clients forward lines typed at a prompt to the server.
	Interactive bool
	Prompt      string
	Greeting    []byte

	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

func DefaultConfig() Config {
	return Config{
		Proto:             TCP,
		Role:              RoleServer,
		Addr:              "",
		Port:              DefaultPort,
		SetSize:           DefaultSetSize,
		CronMs:            DefaultCronMs,
		Backlog:           DefaultBacklog,
		KeepAlive:         DefaultKeepAlive,
		MaxAcceptsPerCall: DefaultMaxAcceptsPerCall,
		Prompt:            "echo> ",
		Greeting:          []byte("hello\n"),
		ReconnectMin:      100 * time.Millisecond,
		ReconnectMax:      10 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.Proto != TCP && c.Proto != UDP {
		return fmt.Errorf("echo: unknown protocol %q", c.Proto)
	}
	if c.Role != RoleServer && c.Role != RoleClient {
		return fmt.Errorf("echo: unknown role %q", c.Role)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("echo: port %d out of range", c.Port)
	}
	if c.MaxAcceptsPerCall <= 0 {
		return fmt.Errorf("echo: max accepts per call must be positive")
	}
	return nil
}

// peerAddr is the address a client dials.
func (c Config) peerAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	if c.IPv6 {
		return "::1"
	}
	return "127.0.0.1"
}
