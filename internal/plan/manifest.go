package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManifestFilename is the name the render recipe is stored under inside a
// job workspace.
const ManifestFilename = "plan.yaml"

// WriteManifest persists a render plan as YAML so a job's exact recipe stays
// inspectable after rendering.
func WriteManifest(path string, p *RenderPlan) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal render plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write render plan manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a render plan previously written with WriteManifest.
func ReadManifest(path string) (*RenderPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read render plan manifest: %w", err)
	}
	var p RenderPlan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal render plan: %w", err)
	}
	return &p, nil
}
