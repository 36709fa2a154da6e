package destination

import (
	"os"

	gojson "github.com/goccy/go-json"

	"github.com/recruitops/atsync/pkg/canonical"
	"github.com/recruitops/atsync/pkg/errors"
)

// FieldMap maps source custom field names to destination custom-field IDs,
// per owner entity. The mapping is maintained by hand in a JSON file:
//
//	{
//	  "candidates":   {"location": "4711", "work_model": "4712"},
//	  "applications": {"referral": "4720"}
//	}
//
// An unmapped field is a per-value skip with reason cf_unmapped, never a
// run failure; new source fields show up in the report until someone maps
// them.
type FieldMap struct {
	byOwner map[string]map[string]string
}

// fileKey names the map section for an owner kind.
func fileKey(kind canonical.Kind) string {
	switch kind {
	case canonical.KindCandidate:
		return "candidates"
	case canonical.KindApplication:
		return "applications"
	default:
		return ""
	}
}

// LoadFieldMap reads the mapping file. A missing path yields an empty map,
// so runs without custom fields need no file at all.
func LoadFieldMap(path string) (*FieldMap, error) {
	if path == "" {
		return &FieldMap{byOwner: map[string]map[string]string{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FieldMap{byOwner: map[string]map[string]string{}}, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "read custom field mapping").WithDetail("path", path)
	}

	var byOwner map[string]map[string]string
	if err := gojson.Unmarshal(data, &byOwner); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "parse custom field mapping").WithDetail("path", path)
	}
	return &FieldMap{byOwner: byOwner}, nil
}

// ID returns the destination custom-field ID for an owner kind and source
// field name, or empty when unmapped.
func (m *FieldMap) ID(owner canonical.Kind, field string) string {
	if m == nil {
		return ""
	}
	section := m.byOwner[fileKey(owner)]
	if section == nil {
		return ""
	}
	return section[field]
}
