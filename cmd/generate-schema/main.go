// Command generate-schema writes the JSON schema of the putd configuration
// file, for editor completion on config.yaml.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/marmos91/putd/pkg/config"
)

func main() {
	output := flag.String("o", "config.schema.json", "Output file, or - for stdout")
	flag.Parse()

	if err := run(*output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(output string) error {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		// Keys match what viper decodes, not the Go field names.
		FieldNameTag: "mapstructure",
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "putd Configuration"
	schema.Description = "Configuration of the putd upload server. " +
		"Timeouts under adapters.put.timeouts accept Go durations; 0 disables a deadline."
	schema.Version = "1.0.0"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	data = append(data, '\n')

	if output == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(os.Stderr, "JSON schema written to %s\n", output)
	return nil
}
