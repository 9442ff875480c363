package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocolqc/protocolqc/internal/domain"
)

func validOptions() Options {
	o := DefaultOptions()
	o.TemplatePath = "templates"
	o.DataPath = "data"
	return o
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Options) {}},
		{name: "missing template path", mutate: func(o *Options) { o.TemplatePath = "" }, wantErr: true},
		{name: "missing data path", mutate: func(o *Options) { o.DataPath = "" }, wantErr: true},
		{name: "score above one", mutate: func(o *Options) { o.MinMatchScore = 1.5 }, wantErr: true},
		{name: "unknown which tags", mutate: func(o *Options) { o.WhichTags = "some" }, wantErr: true},
		{name: "unknown debug level", mutate: func(o *Options) { o.DebugLevel = "TRACE" }, wantErr: true},
		{name: "redis address", mutate: func(o *Options) { o.RedisAddr = "localhost:6379" }},
		{name: "bad redis address", mutate: func(o *Options) { o.RedisAddr = "localhost" }, wantErr: true},
		{
			name:    "redis without stream",
			mutate:  func(o *Options) { o.RedisAddr = "localhost:6379"; o.RedisStream = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions()
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidOptions)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWorkerOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultWorkerOptions().Validate())

	o := DefaultWorkerOptions()
	o.TaskQueue = ""
	assert.ErrorIs(t, o.Validate(), domain.ErrInvalidOptions)
}

func lookupFrom(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestOptions_ApplyEnv(t *testing.T) {
	o := validOptions()
	err := o.ApplyEnv(lookupFrom(map[string]string{
		"PROTOCOLQC_LOGS_DIR":        "/tmp/logs",
		"PROTOCOLQC_FIND_FIRST":      "true",
		"PROTOCOLQC_MIN_MATCH_SCORE": "0.6",
		"PROTOCOLQC_DEBUG_LEVEL":     "debug",
		"PROTOCOLQC_WHICH_TAGS":      " all ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/logs", o.LogsDir)
	assert.True(t, o.FindFirst)
	assert.InDelta(t, 0.6, o.MinMatchScore, 1e-9)
	assert.Equal(t, "DEBUG", o.DebugLevel)
	assert.Equal(t, "all", o.WhichTags)
	assert.Equal(t, "templates", o.TemplatePath)
	require.NoError(t, o.Validate())
}

func TestOptions_ApplyEnv_Invalid(t *testing.T) {
	o := validOptions()
	err := o.ApplyEnv(lookupFrom(map[string]string{
		"PROTOCOLQC_FIND_FIRST":      "maybe",
		"PROTOCOLQC_MIN_MATCH_SCORE": "high",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROTOCOLQC_FIND_FIRST")
}

func TestWorkerOptions_ApplyEnv(t *testing.T) {
	o := DefaultWorkerOptions()
	require.NoError(t, o.ApplyEnv(lookupFrom(map[string]string{
		"PROTOCOLQC_TEMPORAL_HOST_PORT": "temporal:7233",
		"PROTOCOLQC_TASK_QUEUE":         "qc",
	})))

	assert.Equal(t, "temporal:7233", o.TemporalHostPort)
	assert.Equal(t, "qc", o.TaskQueue)
	assert.Equal(t, DefaultNamespace, o.Namespace)
}
