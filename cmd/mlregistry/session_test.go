package main

import (
	"bytes"
	"testing"

	"github.com/redbco/mlregistry/internal/config"
	"github.com/redbco/mlregistry/internal/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelAddress(t *testing.T) {
	cfg := &config.Config{Project: "proj", Dataset: "ds"}

	tests := []struct {
		arg     string
		want    connector.ModelRef
		wantErr bool
	}{
		{arg: "m", want: connector.ModelRef{Project: "proj", Dataset: "ds", ModelID: "m"}},
		{arg: "other.m", want: connector.ModelRef{Project: "proj", Dataset: "other", ModelID: "m"}},
		{arg: "`p2.other.m`", want: connector.ModelRef{Project: "p2", Dataset: "other", ModelID: "m"}},
		{arg: "a.b.c.d", wantErr: true},
		{arg: "ds.", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := modelAddress(tt.arg, cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, connector.ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender(t *testing.T) {
	v := map[string]interface{}{"name": "m", "value": 1.5}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, v, "json"))
	assert.JSONEq(t, `{"name":"m","value":1.5}`, buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, v, "yaml"))
	assert.Equal(t, "name: m\nvalue: 1.5\n", buf.String())

	assert.Error(t, render(&buf, v, "xml"))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"create", "add", "show", "sql", "schema", "drop", "check", "types", "archive", "init"} {
		assert.True(t, names[want], want)
	}
}
