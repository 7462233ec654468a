package config

import (
	"fmt"
	"regexp"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validDropTypes = map[string]bool{
	"": true, "none": true, "source": true, "destination": true, "both": true, "excluded": true,
}

var validHashTypes = map[string]bool{
	"ED2K": true, "CRC32": true, "MD5": true, "SHA1": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}

	seen := map[string]bool{}
	for i, f := range c.Folders {
		if f.Path == "" {
			errs = append(errs, fmt.Sprintf("folders[%d].path: required", i))
		}
		if f.Name == "" {
			errs = append(errs, fmt.Sprintf("folders[%d].name: required", i))
		} else if seen[f.Name] {
			errs = append(errs, fmt.Sprintf("folders[%d].name: duplicate name %q", i, f.Name))
		}
		seen[f.Name] = true
		if !validDropTypes[f.DropType] {
			errs = append(errs, fmt.Sprintf("folders[%d].drop_type: must be one of none, source, destination, both, excluded; got %q", i, f.DropType))
		}
	}

	for _, ht := range c.Hashing.EnabledTypes {
		if !validHashTypes[ht] {
			errs = append(errs, fmt.Sprintf("hashing.enabled_types: unknown hash type %q", ht))
		}
	}

	hasED2K := false
	for _, ht := range c.Hashing.EnabledTypes {
		if ht == "ED2K" {
			hasED2K = true
		}
	}
	if len(c.Hashing.EnabledTypes) > 0 && !hasED2K {
		errs = append(errs, "hashing.enabled_types: the canonical ED2K type cannot be disabled")
	}

	for i, pattern := range c.Relocation.CleanupExcludePaths {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, fmt.Sprintf("relocation.cleanup_exclude_paths[%d]: invalid pattern: %v", i, err))
		}
	}

	return errs
}
