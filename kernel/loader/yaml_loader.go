package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/edgeops/converge/kernel/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type documentYaml struct {
	Environment string         `yaml:"environment"`
	Prune       bool           `yaml:"prune"`
	Resources   []resourceYaml `yaml:"resources"`
}

type resourceYaml struct {
	Type  string                 `yaml:"type"`
	Name  string                 `yaml:"name"`
	After []string               `yaml:"after"`
	Spec  map[string]interface{} `yaml:"spec"`
}

// LoadDesiredState reads and fully validates a desired-state document.
// Everything that can fail for shape reasons fails here, before any probe.
func LoadDesiredState(path string) (*model.DesiredState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read desired-state document [%s]", path)
	}
	return ParseDesiredState(data)
}

// ParseDesiredState decodes a document from raw YAML.
func ParseDesiredState(data []byte) (*model.DesiredState, error) {
	var doc documentYaml
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, errors.Wrap(err, "unable to parse desired-state document")
	}
	if doc.Environment == "" {
		return nil, errors.New("document is missing 'environment'")
	}

	sum := sha256.Sum256(data)
	state := &model.DesiredState{
		Environment: doc.Environment,
		Prune:       doc.Prune,
		Checksum:    hex.EncodeToString(sum[:]),
	}
	for _, res := range doc.Resources {
		decl, err := decodeDeclaration(res)
		if err != nil {
			return nil, err
		}
		state.Resources = append(state.Resources, decl)
	}

	if err := state.Validate(); err != nil {
		return nil, err
	}
	return state, nil
}

func decodeDeclaration(res resourceYaml) (*model.Declaration, error) {
	spec, err := model.NewResourceSpec(model.Kind(res.Type))
	if err != nil {
		return nil, model.NewSpecError(
			model.ResourceId{Kind: model.Kind(res.Type), Name: res.Name},
			"unknown resource type '%s'", res.Type)
	}

	// Round-trip the spec block through YAML into the typed spec. Strict mode
	// rejects keys the variant does not define.
	raw, err := yaml.Marshal(res.Spec)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to re-encode spec for '%s:%s'", res.Type, res.Name)
	}
	if err := yaml.UnmarshalStrict(raw, spec); err != nil {
		return nil, model.NewSpecError(
			model.ResourceId{Kind: model.Kind(res.Type), Name: res.Name},
			"malformed spec: %v", err)
	}

	decl := &model.Declaration{
		Name: res.Name,
		Spec: spec,
	}
	for _, after := range res.After {
		dep, err := model.ParseResourceId(after)
		if err != nil {
			return nil, model.NewSpecError(decl.Id(), "bad after reference: %v", err)
		}
		decl.After = append(decl.After, dep)
	}
	return decl, nil
}
