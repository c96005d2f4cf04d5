package catalogs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validateAgainstSchema checks a catalog file against the sibling
// schemas/<name>.schema.json when one exists. Catalogs are operator-edited
// input, so malformed metadata should fail at load rather than mid-tick.
func validateAgainstSchema(path string, raw []byte) error {
	name := strings.TrimSuffix(filepath.Base(path), ".json")
	schemaPath := filepath.Join(filepath.Dir(path), "schemas", name+".schema.json")
	if _, err := os.Stat(schemaPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	schema, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return fmt.Errorf("compile %s: %w", schemaPath, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%s: schema: %w", filepath.Base(path), err)
	}
	return nil
}
