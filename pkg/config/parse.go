package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	yaml "go.yaml.in/yaml/v3"
)

// coerceToJSONBytes converts TOML or YAML config to JSON bytes so the strict
// JSON decoder (DisallowUnknownFields) is reused for every format.
//
// Returns (jsonBytes, format, err) where format is "toml", "yaml" or "json".
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var v any
		if err := toml.Unmarshal(data, &v); err != nil {
			return nil, "toml", fmt.Errorf("toml unmarshal: %w", err)
		}
		j, err := json.Marshal(v)
		if err != nil {
			return nil, "toml", fmt.Errorf("toml->json marshal: %w", err)
		}
		return j, "toml", nil
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
		}
		v = normalizeYAML(v)
		j, err := json.Marshal(v)
		if err != nil {
			return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
		}
		return j, "yaml", nil
	default:
		return data, "json", nil
	}
}

// normalizeYAML ensures all map keys are strings so the result can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

func decodeStrict(jsonBytes []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing data")
		}
		return err
	}
	return nil
}

// ParseClient parses client configuration. path is only used to pick the
// input format by extension; data is the file content.
func ParseClient(path string, data []byte) (*Client, error) {
	jb, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}
	var file struct {
		Client *Client `json:"client"`
	}
	if err := decodeStrict(jb, &file); err != nil {
		return nil, fmt.Errorf("parse %s client config: %w", format, err)
	}
	if file.Client == nil {
		return nil, fmt.Errorf("parse %s client config: missing [client] section", format)
	}
	if err := file.Client.Validate(); err != nil {
		return nil, err
	}
	return file.Client, nil
}

// ParseServer parses server configuration, see ParseClient.
func ParseServer(path string, data []byte) (*Server, error) {
	jb, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}
	var file struct {
		Server *Server `json:"server"`
	}
	if err := decodeStrict(jb, &file); err != nil {
		return nil, fmt.Errorf("parse %s server config: %w", format, err)
	}
	if file.Server == nil {
		return nil, fmt.Errorf("parse %s server config: missing [server] section", format)
	}
	if err := file.Server.Validate(); err != nil {
		return nil, err
	}
	return file.Server, nil
}

// LoadClient reads and parses a client configuration file.
func LoadClient(path string) (*Client, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseClient(path, b)
}

// LoadServer reads and parses a server configuration file.
func LoadServer(path string) (*Server, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseServer(path, b)
}
