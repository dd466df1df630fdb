package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/peerpump"
)

func TestRootCmd_Misconfiguration(t *testing.T) {
	t.Setenv(envAddresses, "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--role", "listener"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	assert.ErrorIs(t, err, peerpump.ErrConfig)
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.Execute())
}

func TestRootCmd_ListenerStopsOnCancel(t *testing.T) {
	var logs bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--role", "listener", "--address", "127.0.0.1:0", "--log-level", "debug"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&logs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("command did not stop after cancel")
	}
	assert.Contains(t, logs.String(), "server started")
}
