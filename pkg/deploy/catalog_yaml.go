package deploy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of a YAML catalog.
type catalogFile struct {
	Features []Feature `yaml:"features"`
}

// LoadYAMLCatalog reads a feature catalog from a YAML file:
//
//	features:
//	  - code: reports
//	    surface: reports.dashboard
//	    permissions:
//	      - code: "reports:export"
//	        required: true
//	        roles:
//	          - role_key: staff
//	            recommended: true
func LoadYAMLCatalog(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}

	return NewMemoryCatalog(file.Features...)
}
