package cubes

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Template file names inside the templates directory.
const (
	ModelFirstPart      = "MODEL_FIRST_PART"
	ModelCubeStaticPart = "MODEL_CUBE_STATIC_PART"
	ModelLastPart       = "MODEL_LAST_PART"
	YAMLStaticPart      = "YAML_STATIC_PART"
)

const (
	yamlSource    = "Open APC"
	yamlSourceURL = "https://github.com/OpenAPC/openapc-de"
	yamlDataURL   = "https://github.com/OpenAPC/openapc-de/blob/master/data/apc_de.csv"
	yamlLevel     = "kommune"
)

func readTemplate(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", eris.Wrapf(err, "cubes: read template %s", name)
	}
	return string(data), nil
}

// BuildModel assembles the cubes model: the first template part, one cube
// per institution followed by the static cube part, and the last part.
func BuildModel(templatesDir string, institutions []Institution) (string, error) {
	first, err := readTemplate(templatesDir, ModelFirstPart)
	if err != nil {
		return "", err
	}
	static, err := readTemplate(templatesDir, ModelCubeStaticPart)
	if err != nil {
		return "", err
	}
	last, err := readTemplate(templatesDir, ModelLastPart)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(first)
	for _, inst := range institutions {
		name, _ := json.Marshal(inst.CubesName)
		label, _ := json.Marshal(inst.FullName + " openAPC data cube")
		b.WriteString("        ,\n        {\n")
		fmt.Fprintf(&b, "            \"name\": %s,\n", name)
		fmt.Fprintf(&b, "            \"label\": %s,\n", label)
		b.WriteString(static)
	}
	b.WriteString(last)
	return b.String(), nil
}

// WriteModel writes the cubes model to outDir/model.json and returns its
// path. A result that is not valid JSON is written anyway and logged.
func WriteModel(templatesDir, outDir string, institutions []Institution) (string, error) {
	model, err := BuildModel(templatesDir, institutions)
	if err != nil {
		return "", err
	}
	if !json.Valid([]byte(model)) {
		zap.L().Warn("cubes: model is not valid JSON, check the templates", zap.String("templates_dir", templatesDir))
	}

	path := filepath.Join(outDir, "model.json")
	if err := os.WriteFile(path, []byte(model), 0o644); err != nil {
		return "", eris.Wrapf(err, "cubes: write %s", path)
	}
	return path, nil
}

// BuildYAML renders the descriptor of one institution followed by the
// static template part.
func BuildYAML(inst Institution, static string) (string, error) {
	pairs := []struct {
		key   string
		value string
		style yaml.Style
	}{
		{"name", inst.FullName, 0},
		{"slug", inst.CubesName, 0},
		{"tagline", inst.FullName + " APC data", 0},
		{"source", yamlSource, 0},
		{"source_url", yamlSourceURL, 0},
		{"data_url", yamlDataURL, 0},
		{"state", inst.State, 0},
		{"level", yamlLevel, 0},
		{"dataset", inst.CubesName, yaml.SingleQuotedStyle},
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range pairs {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.value, Style: p.style},
		)
	}

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", eris.Wrapf(err, "cubes: encode yaml for %s", inst.CubesName)
	}
	if err := enc.Close(); err != nil {
		return "", eris.Wrapf(err, "cubes: encode yaml for %s", inst.CubesName)
	}
	b.WriteString(static)
	return b.String(), nil
}

// WriteYAMLs writes <cubes name>.yaml for every institution into outDir and
// returns the written paths.
func WriteYAMLs(templatesDir, outDir string, institutions []Institution) ([]string, error) {
	static, err := readTemplate(templatesDir, YAMLStaticPart)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, inst := range institutions {
		content, err := BuildYAML(inst, static)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(outDir, inst.CubesName+".yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return paths, eris.Wrapf(err, "cubes: write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
