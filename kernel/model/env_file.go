package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// EnvFileSpec implements ResourceSpec for a KEY=VALUE environment file.
// Converging renders the declared variables in sorted key order so the file
// content is deterministic and comparable by checksum.
type EnvFileSpec struct {
	Path string            `yaml:"path"`
	Vars map[string]string `yaml:"vars"`
	Mode string            `yaml:"mode"`
}

const DefaultEnvFileMode = "0640"

func (s *EnvFileSpec) Kind() Kind {
	return KindEnvFile
}

func (s *EnvFileSpec) Validate(name string) error {
	id := ResourceId{Kind: KindEnvFile, Name: name}
	if s.Path == "" {
		return NewSpecError(id, "path is required")
	}
	if len(s.Vars) == 0 {
		return NewSpecError(id, "vars must not be empty")
	}
	for k := range s.Vars {
		if k == "" || strings.ContainsAny(k, "= \t\n") {
			return NewSpecError(id, "invalid variable name '%s'", k)
		}
	}
	if s.Mode == "" {
		s.Mode = DefaultEnvFileMode
	}
	return nil
}

// Render produces the canonical file content for the declared variables.
func (s *EnvFileSpec) Render() string {
	keys := make([]string, 0, len(s.Vars))
	for k := range s.Vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s.Vars[k])
		b.WriteByte('\n')
	}
	return b.String()
}

// Checksum returns the sha256 of the canonical rendering.
func (s *EnvFileSpec) Checksum() string {
	sum := sha256.Sum256([]byte(s.Render()))
	return hex.EncodeToString(sum[:])
}

// ChecksumOf hashes observed file content the same way Render is hashed.
func ChecksumOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (s *EnvFileSpec) Diff(observed Observation) Op {
	if observed.Presence == PresenceAbsent {
		return OpCreate
	}
	if observed.Attr("checksum") != s.Checksum() ||
		observed.Attr("mode") != s.Mode {
		return OpUpdate
	}
	return OpNoOp
}

func (s *EnvFileSpec) Describe() string {
	return fmt.Sprintf("env file %s (%d vars, mode %s)", s.Path, len(s.Vars), s.Mode)
}

func init() {
	RegisterResourceType(KindEnvFile, func() ResourceSpec { return &EnvFileSpec{} })
}
