package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROTOCOLQC_"

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides o from PROTOCOLQC_* variables. A nil lookup reads the
// process environment.
func (o *Options) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := envReader{lookup: lookup}
	e.setString("TEMPLATE_PATH", &o.TemplatePath)
	e.setString("DATA_PATH", &o.DataPath)
	e.setString("LOGS_DIR", &o.LogsDir)
	e.setBool("FIND_FIRST", &o.FindFirst)
	e.setFloat("MIN_MATCH_SCORE", &o.MinMatchScore)
	e.setString("SUB_LABEL", &o.SubLabel)
	e.setString("WHICH_TAGS", &o.WhichTags)
	e.setUpper("DEBUG_LEVEL", &o.DebugLevel)
	e.setString("REDIS_ADDR", &o.RedisAddr)
	e.setString("REDIS_STREAM", &o.RedisStream)
	return e.err
}

// ApplyEnv overrides o from PROTOCOLQC_* variables.
func (o *WorkerOptions) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := envReader{lookup: lookup}
	e.setString("TEMPORAL_HOST_PORT", &o.TemporalHostPort)
	e.setString("NAMESPACE", &o.Namespace)
	e.setString("TASK_QUEUE", &o.TaskQueue)
	e.setString("REDIS_ADDR", &o.RedisAddr)
	e.setString("REDIS_STREAM", &o.RedisStream)
	e.setUpper("DEBUG_LEVEL", &o.DebugLevel)
	return e.err
}

// envReader keeps the first parse error.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + key)
	return strings.TrimSpace(v), ok
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setUpper(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = strings.ToUpper(v)
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envReader) setFloat(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = f
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
}
