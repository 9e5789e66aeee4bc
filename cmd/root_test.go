package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jellexet/linewatch/pkg/buffer"
	"github.com/jellexet/linewatch/pkg/config"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd(run)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, buffer.Version+"\n", out.String())
}

// parse executes the root command with args and returns the configuration
// it would have run with.
func parse(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var got *config.Config
	cmd := newRootCmd(func(_ context.Context, cfg *config.Config) error {
		got = cfg
		return nil
	})
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return got, err
}

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linewatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
buffer:
  capacity: 20
  target: beaver
input:
  kind: serial
  device: /dev/ttyACM0
  baud: 115200
`), 0o600))

	cfg, err := parse(t, "--config", path, "--target", "otter", "-v")
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Buffer.Capacity, "file value kept when the flag is not set")
	assert.Equal(t, "otter", cfg.Buffer.Target)
	assert.Equal(t, config.InputSerial, cfg.Input.Kind)
	assert.Equal(t, "/dev/ttyACM0", cfg.Input.Device)
	assert.Equal(t, 115200, cfg.Input.Baud)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestResolveConfigRejectsInvalidFlags(t *testing.T) {
	_, err := parse(t, "--capacity", "2")
	assert.Error(t, err)

	_, err = parse(t, "--input", "carrier-pigeon")
	assert.Error(t, err)
}

func TestRunOverTelnet(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := conn.Write([]byte("otter")); err != nil {
			return
		}
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := strings.TrimSuffix(scanner.Text(), "\r")
			lines <- line
			if line == "now it's gone." {
				cancel()
			}
		}
	}()

	cfg := config.Default()
	cfg.Input.Kind = config.InputTelnet
	cfg.Input.Address = ln.Addr().String()
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "error"

	require.NoError(t, run(ctx, cfg), "cancellation is a clean exit")

	var got []string
	for l := range lines {
		got = append(got, l)
	}
	assert.Equal(t, []string{
		"String Library version: " + buffer.Version,
		"o", "ot", "ott", "otte", "otter",
		"Look!  An otter in the String!",
		"otter",
		"now it's gone.",
	}, got)
}
