// Package validate implements the §7 "Rule schema violations at session
// start" check: the security-guard task, invoked in validate_only mode
// during SessionStart, validates the security-rules and
// worktree-permissions documents against a JSON Schema using
// github.com/xeipuuv/gojsonschema and returns continue=false with a stop
// reason if either is structurally broken.
package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// securityRulesSchema mirrors the §3 security-rules document shape: two
// top-level buckets, each a mapping from permission level to {files,
// commands}.
const securityRulesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "whitelist": {"$ref": "#/definitions/bucketMap"},
    "blacklist": {"$ref": "#/definitions/bucketMap"}
  },
  "definitions": {
    "bucketMap": {
      "type": "object",
      "additionalProperties": {"$ref": "#/definitions/bucket"}
    },
    "bucket": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "files": {"type": "array", "items": {"$ref": "#/definitions/fileRule"}},
        "commands": {"type": "array", "items": {"$ref": "#/definitions/commandRule"}}
      }
    },
    "fileRule": {
      "type": "object",
      "required": ["pattern"],
      "properties": {
        "pattern": {"type": "string"},
        "tools": {"type": "array", "items": {"type": "string"}},
        "message": {"type": "string"}
      }
    },
    "commandRule": {
      "type": "object",
      "required": ["command"],
      "properties": {
        "command": {"type": "string"},
        "flags": {"type": "array", "items": {"type": "array", "items": {"type": "string"}}},
        "paths": {"type": "array", "items": {"type": "string"}},
        "patterns": {"type": "array", "items": {"type": "string"}},
        "block_always": {"type": "boolean"},
        "tools": {"type": "array", "items": {"type": "string"}},
        "message": {"type": "string"}
      }
    }
  }
}`

// worktreePermissionsSchema mirrors §3's typed worktree-permissions
// sections.
const worktreePermissionsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "global": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "default_permission": {"type": "string"},
        "enforce_boundaries": {"type": "boolean"},
        "always_allow": {"type": "array", "items": {"type": "string"}},
        "always_deny": {"type": "array"}
      }
    },
    "main_worktree": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "permissions": {"type": "object"}
      }
    },
    "branch_permissions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["branch_types"],
        "properties": {
          "branch_types": {"type": "array", "items": {"type": "string"}},
          "reason": {"type": "string"},
          "permissions": {"type": "object"}
        }
      }
    },
    "unknown_branch": {
      "type": "object",
      "properties": {
        "reason": {"type": "string"},
        "permissions": {"type": "object"}
      }
    }
  }
}`

// SecurityRules validates the YAML document at path against
// securityRulesSchema. A missing file is not an error (§4.9: missing
// optional config ⇒ empty, permissive defaults) — there is nothing to
// validate.
func SecurityRules(path string) error {
	return validateYAMLAgainstSchema(path, securityRulesSchema)
}

// WorktreePermissions validates the YAML document at path against
// worktreePermissionsSchema.
func WorktreePermissions(path string) error {
	return validateYAMLAgainstSchema(path, worktreePermissionsSchema)
}

func validateYAMLAgainstSchema(path, schema string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("validate: reading %s: %w", path, err)
	}

	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("validate: %s is not valid YAML: %w", path, err)
	}
	jsonBytes, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("validate: %s could not be normalised to JSON: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(string(jsonBytes)),
	)
	if err != nil {
		return fmt.Errorf("validate: schema check for %s failed: %w", path, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("validate: %s violates its schema: %s", path, strings.Join(msgs, "; "))
	}
	return nil
}
