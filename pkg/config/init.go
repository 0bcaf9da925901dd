package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// sectionComments holds the head comment written above each top-level
// section of a generated config file, in output order.
var sectionComments = []struct {
	key     string
	comment string
}{
	{"logging", "Logging\nlevel: DEBUG, INFO, WARN, ERROR | format: text, json | output: stdout, stderr or a file path"},
	{"server", "Server-wide settings\nmetrics exposes Prometheus on HTTP, health exposes grpc.health.v1 on its own port"},
	{"storage", "Storage root for uploaded files\ntype: filesystem, memory, s3 (only the matching section is used)"},
	{"journal", "Transfer journal\ntype: none, csv, badger\nsamples.enabled dumps TCP_INFO readings per upload (needs adapters.put.tcp_info)"},
	{"adapters", "Protocol adapters\ntimeouts: 0 disables the corresponding deadline"},
}

// InitConfig writes a default configuration file to the default location.
//
// Returns the path of the written file. Fails if the file already exists
// unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML using the mapstructure keys,
// with one commented section per top-level key.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var flat map[string]any
	if err := mapstructure.Decode(cfg, &flat); err != nil {
		return "", fmt.Errorf("failed to convert config: %w", err)
	}

	root := &yaml.Node{
		Kind:        yaml.MappingNode,
		HeadComment: "putd Configuration File\n\nEnvironment variables override any value: PUTD_<SECTION>_<KEY>, e.g. PUTD_ADAPTERS_PUT_PORT=14000",
	}

	for _, section := range sectionComments {
		value, ok := flat[section.key]
		if !ok {
			continue
		}

		var valueNode yaml.Node
		if err := valueNode.Encode(value); err != nil {
			return "", fmt.Errorf("failed to encode %s section: %w", section.key, err)
		}

		keyNode := &yaml.Node{
			Kind:        yaml.ScalarNode,
			Value:       section.key,
			HeadComment: section.comment,
		}
		root.Content = append(root.Content, keyNode, &valueNode)
	}

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	return string(out), nil
}
