package plugins

import (
	"fmt"
	"regexp"
	"strings"
)

// The core treats a plug-in identifier as an opaque, comparable string
// (spec §3: "identifier, unique"); it never parses or generates one. The
// helpers below are an optional convention — organization.component-type.
// name.version — for hosts that want a structured identifier scheme
// instead of rolling their own, adapted from the dotted-id convention used
// elsewhere in the pack.

// DefaultOrganization is used by GenerateStructuredID when org is left blank.
const DefaultOrganization = "local"

var idPattern = regexp.MustCompile(`^[\w-]+\.[a-z0-9-]+\.[a-z0-9-]+\.v\d+(?:\.\d+\.\d+)?$`)

// StructuredID is the parsed form of an identifier following the optional
// organization.type.name.version convention.
type StructuredID struct {
	Organization string
	ComponentType string
	Name         string
	Version      string
}

// ParseStructuredID parses id as organization.type.name.version. It returns
// CodeMalformed if id does not follow the convention; this never blocks
// InstallPlugin, which accepts any non-empty identifier.
func ParseStructuredID(id string) (*StructuredID, error) {
	parts := strings.SplitN(id, ".", 4)
	if len(parts) != 4 {
		return nil, newErr(CodeMalformed, id, "parse_structured_id", "expected organization.type.name.version", nil)
	}
	if err := ValidateStructuredID(id); err != nil {
		return nil, err
	}
	return &StructuredID{
		Organization:  parts[0],
		ComponentType: parts[1],
		Name:          parts[2],
		Version:       parts[3],
	}, nil
}

// GenerateStructuredID builds an identifier in the organization.type.name.
// version convention. org defaults to DefaultOrganization when blank, and
// version is prefixed with "v" if it isn't already.
func GenerateStructuredID(org, componentType, name, version string) string {
	if org == "" {
		org = DefaultOrganization
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return fmt.Sprintf("%s.%s.%s.%s", org, componentType, name, version)
}

// ValidateStructuredID reports whether id follows the organization.type.
// name.version convention.
func ValidateStructuredID(id string) error {
	if !idPattern.MatchString(id) {
		return newErr(CodeMalformed, id, "validate_structured_id", "does not match organization.type.name.version", nil)
	}
	return nil
}
