package config

import (
	"fmt"
	"strconv"
	"strings"
)

// schemaVersion is a parsed "MAJOR.MINOR" schema_version.
type schemaVersion struct {
	major, minor int
}

func parseSchemaVersion(s string) (schemaVersion, error) {
	majorStr, minorStr, ok := strings.Cut(s, ".")
	if !ok {
		return schemaVersion{}, fmt.Errorf("invalid schema_version %q (expected MAJOR.MINOR)", s)
	}
	major, err := strconv.Atoi(majorStr)
	if err != nil || major < 0 {
		return schemaVersion{}, fmt.Errorf("invalid schema_version major %q", majorStr)
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil || minor < 0 {
		return schemaVersion{}, fmt.Errorf("invalid schema_version minor %q", minorStr)
	}
	return schemaVersion{major: major, minor: minor}, nil
}

// checkVersion accepts an empty schema_version (filled in by defaults) and
// any version with the same major number as CurrentSchemaVersion.
func checkVersion(s string) error {
	if s == "" {
		return nil
	}
	v, err := parseSchemaVersion(s)
	if err != nil {
		return err
	}
	current, err := parseSchemaVersion(CurrentSchemaVersion)
	if err != nil {
		return err
	}
	if v.major != current.major {
		return fmt.Errorf("unsupported schema_version %s (this build reads %d.x)", s, current.major)
	}
	return nil
}
