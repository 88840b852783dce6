package validate

import (
    "io"

    "github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateJSON validates an object (already converted to JSON) with the given schema.
func ValidateJSON(obj any, schemaSrc string) error {
    c := jsonschema.NewCompiler()
    if err := c.AddResource("mem://schema.json", bytesReader(schemaSrc)); err != nil {
        return err
    }
    sch, err := c.Compile("mem://schema.json")
    if err != nil { return err }
    return sch.Validate(obj)
}

// ValidateConfigMap validates a generic decoded config map with the daemon
// config schema. Structural checks only; coupling between fields (warning vs
// cleanup fraction) stays with the typed loader.
func ValidateConfigMap(m map[string]any) error {
    return ValidateJSON(m, configSchema)
}

const configSchema = `{
  "$schema":"https://json-schema.org/draft/2020-12/schema",
  "type":"object",
  "properties":{
    "config_version":{"type":"string"},
    "thresholds":{
      "type":"object",
      "properties":{
        "max_file_handles":{"type":"integer","minimum":1},
        "max_memory_mb":{"type":"number","exclusiveMinimum":0},
        "max_cpu_percent":{"type":"number","exclusiveMinimum":0,"maximum":100},
        "warning_fraction":{"type":"number","exclusiveMinimum":0,"exclusiveMaximum":1},
        "cleanup_fraction":{"type":"number","exclusiveMinimum":0,"exclusiveMaximum":1}
      }
    },
    "monitor":{
      "type":"object",
      "properties":{
        "interval":{"type":"string"}
      }
    },
    "http":{
      "type":"object",
      "properties":{
        "addr":{"type":"string"}
      }
    },
    "limits":{
      "type":"object",
      "properties":{
        "raise_nofile":{"type":"integer","minimum":0}
      }
    },
    "notify":{
      "type":"object",
      "properties":{
        "backend":{"type":"string","enum":["","nats","mqtt"]},
        "url":{"type":"string"},
        "subject":{"type":"string"},
        "topic":{"type":"string"},
        "client_id":{"type":"string"},
        "burst":{"type":"integer","minimum":0},
        "min_interval":{"type":"string"}
      }
    }
  }
}`

// Helper to provide io.ReadSeeker from string for jsonschema compiler
func bytesReader(s string) *bytesReaderT { return &bytesReaderT{b: []byte(s)} }

type bytesReaderT struct{ b []byte; i int64 }
func (r *bytesReaderT) Read(p []byte) (int, error) { n := copy(p, r.b[r.i:]); r.i += int64(n); if r.i >= int64(len(r.b)) { return n, io.EOF }; return n, nil }
func (r *bytesReaderT) Seek(off int64, whence int) (int64, error) {
    switch whence { case 0: r.i = off; case 1: r.i += off; case 2: r.i = int64(len(r.b)) + off }
    if r.i < 0 { r.i = 0 }
    if r.i > int64(len(r.b)) { r.i = int64(len(r.b)) }
    return r.i, nil
}
