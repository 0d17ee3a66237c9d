// Device-alias persistence: maps a pedal's raw probed name to a stable,
// user-assigned label that survives USB re-enumeration across ports.
//
// Grounded on the teacher's src/deviceid.go, which loads a vendor/model ->
// friendly-name YAML table (tocalls.yaml) at startup; here the lookup key is
// a pedal's raw name instead of an APRS destination field, but the "small
// YAML table, loaded once, read-mostly" shape is the same.
package pedal

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AliasTable maps a pedal's raw probed name to a user-assigned label.
type AliasTable struct {
	path    string
	aliases map[string]string
}

// AliasFilePath returns the default alias file location under dir (normally
// engineconf.Dir()).
func AliasFilePath(dir string) string {
	return filepath.Join(dir, "device-aliases.yaml")
}

// LoadAliasTable reads path, tolerating a missing file (an empty table).
func LoadAliasTable(path string) (*AliasTable, error) {
	t := &AliasTable{path: path, aliases: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("pedal: read alias table %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &t.aliases); err != nil {
		return nil, fmt.Errorf("pedal: parse alias table %s: %w", path, err)
	}
	if t.aliases == nil {
		t.aliases = make(map[string]string)
	}

	return t, nil
}

// Lookup returns the alias for rawName, or rawName itself if none is set.
func (t *AliasTable) Lookup(rawName string) string {
	if alias, ok := t.aliases[rawName]; ok {
		return alias
	}
	return rawName
}

// Set assigns alias to rawName and persists the table.
func (t *AliasTable) Set(rawName, alias string) error {
	t.aliases[rawName] = alias
	return t.save()
}

// Remove clears any alias for rawName and persists the table.
func (t *AliasTable) Remove(rawName string) error {
	delete(t.aliases, rawName)
	return t.save()
}

func (t *AliasTable) save() error {
	data, err := yaml.Marshal(t.aliases)
	if err != nil {
		return fmt.Errorf("pedal: marshal alias table: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("pedal: create alias table directory: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("pedal: write alias table: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("pedal: commit alias table: %w", err)
	}

	return nil
}
