package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/gapfill-api/internal/platform/logger"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{name: "no flags", args: nil, want: options{}},
		{name: "migrate", args: []string{"-migrate", "status"}, want: options{migrate: "status"}},
		{name: "seed", args: []string{"-seed"}, want: options{seed: true}},
		{name: "both", args: []string{"-seed", "-migrate", "up"}, wantErr: true},
		{name: "unknown flag", args: []string{"-verbose"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunMigrations_UnknownCommand(t *testing.T) {
	log, _ := logger.NewTestLogger(t)

	err := runMigrations(context.Background(), nil, "sideways", log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown migration command "sideways"`)
}

func TestSlogGooseLogger(t *testing.T) {
	log, buf := logger.NewTestLogger(t)
	l := &slogGooseLogger{logger: log}

	l.Printf("OK   %s", "20250101000001_create_exercises.sql")
	l.Fatalf("failed to run migration %d", 3)

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "OK   20250101000001_create_exercises.sql", entries[0]["msg"])
	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Equal(t, "failed to run migration 3", entries[1]["msg"])
}

func TestLogConfig_RedactsDatabaseCredentials(t *testing.T) {
	log, buf := logger.NewTestLogger(t)

	logConfig(testConfig(), log)

	logger.AssertLogContains(t, buf, "server configuration loaded")
	assert.NotContains(t, buf.String(), "secret")
	assert.NotContains(t, buf.String(), "test-key")
}
