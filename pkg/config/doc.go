// Package config holds the typed configuration the relay core consumes: a
// shared key plus lists of type-discriminated interface and endpoint records.
//
// Files may be TOML (the native format), YAML, or JSON. All three are coerced
// to canonical JSON and decoded strictly (unknown fields are rejected), so
// every format gets identical validation.
package config
