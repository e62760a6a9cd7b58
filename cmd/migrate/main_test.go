package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		want    options
		wantErr string
	}{
		{
			name: "defaults from env",
			env:  map[string]string{"BOOKSTORE_POSTGRES_DSN": " postgres://localhost/bookstore "},
			want: options{direction: "up", dsn: "postgres://localhost/bookstore"},
		},
		{
			name: "flag wins over env",
			args: []string{"-dsn", "postgres://flag/db", "-direction", "STATUS"},
			env:  map[string]string{"BOOKSTORE_POSTGRES_DSN": "postgres://env/db"},
			want: options{direction: "status", dsn: "postgres://flag/db"},
		},
		{
			name: "down rolls back one step by default",
			args: []string{"-dsn", "postgres://flag/db", "-direction", "down"},
			want: options{direction: "down", steps: 1, dsn: "postgres://flag/db"},
		},
		{
			name:    "missing dsn",
			wantErr: "BOOKSTORE_POSTGRES_DSN",
		},
		{
			name:    "unknown direction",
			args:    []string{"-dsn", "postgres://flag/db", "-direction", "sideways"},
			wantErr: "unsupported direction",
		},
		{
			name:    "negative steps",
			args:    []string{"-dsn", "postgres://flag/db", "-steps", "-2"},
			wantErr: "steps must be >= 0",
		},
		{
			name:    "unknown flag",
			args:    []string{"-force"},
			wantErr: "flag provided but not defined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOptions(tt.args, env(tt.env))
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRun_InvalidArguments(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-direction", "sideways"}, env(nil), &out)
	require.Error(t, err)
	require.Empty(t, out.String())
}

func TestRun_UpAndStatus(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("BOOKSTORE_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("BOOKSTORE_POSTGRES_TEST_DSN is not set")
	}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-dsn", dsn, "-direction", "up"}, env(nil), &out))
	require.Contains(t, out.String(), "migrate up ok")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-dsn", dsn, "-direction", "status"}, env(nil), &out))
	require.Contains(t, out.String(), "migrate status ok")
}
