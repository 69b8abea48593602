// Package manifest decodes a job directory's job.yaml into a typed
// Record. The YAML grammar itself is someone else's problem — gopkg.in/yaml.v3
// is the opaque decoder spec.md describes; this package only validates the
// required fields and applies the documented defaults.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration reports a malformed or incomplete job.yaml. The message
// is surfaced to the HTTP caller verbatim (spec §7, §6 scenario 6).
type ErrConfiguration struct {
	Message string
}

func (e *ErrConfiguration) Error() string { return e.Message }

func missingParam(name string) error {
	return &ErrConfiguration{Message: fmt.Sprintf("Invalid job.yaml: '%s' parameter is required.", name)}
}

// ResourceUsage is the optional ResourceUsage section of job.yaml. Missing
// fields default to zero (assumed negligible), matching spec §3.
type ResourceUsage struct {
	CPU  int   // percent of one core-equivalent; 100 = one full core
	RAM  int64 // bytes
	GPU  int   // percent of a single GPU, 0-100
	VRAM int64 // bytes
}

// Record is the decoded, validated contents of a job directory's job.yaml.
type Record struct {
	Name          string
	Description   string
	Container     string
	Volumes       map[string]string
	ResourceUsage ResourceUsage
}

type rawManifest struct {
	Name          string              `yaml:"Name"`
	Description   string              `yaml:"Description"`
	Container     string              `yaml:"Container"`
	Volumes       map[string]string   `yaml:"Volumes"`
	ResourceUsage []map[string]yaml.Node `yaml:"ResourceUsage"`
}

// Decode reads and validates job.yaml from jobDir. It returns the decoded
// Record, a slice of human-readable warnings for unknown ResourceUsage
// keys (logged by the caller, never fatal), and an error if a required
// field is missing or the file can't be read/parsed.
func Decode(jobDir string) (*Record, []string, error) {
	configPath := filepath.Join(jobDir, "job.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, &ErrConfiguration{Message: fmt.Sprintf("Could not find job.yaml file in %s!", jobDir)}
		}
		return nil, nil, fmt.Errorf("reading %s: %w", configPath, err)
	}

	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, &ErrConfiguration{Message: fmt.Sprintf("Invalid job.yaml: %v", err)}
	}

	if raw.Name == "" {
		return nil, nil, missingParam("Name")
	}
	if raw.Description == "" {
		return nil, nil, missingParam("Description")
	}
	if raw.Container == "" {
		return nil, nil, missingParam("Container")
	}

	usage, warnings := decodeResourceUsage(raw.ResourceUsage)

	return &Record{
		Name:          raw.Name,
		Description:   raw.Description,
		Container:     raw.Container,
		Volumes:       raw.Volumes,
		ResourceUsage: usage,
	}, warnings, nil
}

func decodeResourceUsage(entries []map[string]yaml.Node) (ResourceUsage, []string) {
	var usage ResourceUsage
	var warnings []string

	for _, entry := range entries {
		for key, node := range entry {
			switch key {
			case "CpuUsage":
				var v int
				if node.Decode(&v) == nil {
					usage.CPU = v
				}
			case "RamUsage":
				var v int64
				if node.Decode(&v) == nil {
					usage.RAM = v
				}
			case "GpuUsage":
				var v int
				if node.Decode(&v) == nil {
					usage.GPU = v
				}
			case "VramUsage":
				var v int64
				if node.Decode(&v) == nil {
					usage.VRAM = v
				}
			default:
				warnings = append(warnings, fmt.Sprintf("unknown ResourceUsage key %q ignored", key))
			}
		}
	}

	return usage, warnings
}
