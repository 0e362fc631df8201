package redis

import (
	"testing"

	"galaxy-server/internal/shared/config"
)

func TestOptions(t *testing.T) {
	opts, err := options(config.RedisConfig{Host: "cache", Port: "6380", DB: 2, Password: "pw"})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "pw" {
		t.Fatalf("opts = %+v", opts)
	}

	opts, err = options(config.RedisConfig{URL: "redis://:secret@localhost:6379/3", Host: "ignored"})
	if err != nil {
		t.Fatalf("options from url: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 3 || opts.Password != "secret" {
		t.Fatalf("opts = %+v", opts)
	}

	if _, err := options(config.RedisConfig{URL: "http://nope"}); err == nil {
		t.Fatalf("expected bad scheme to fail")
	}
}

func TestNilClientClose(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
}
