package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// Cap-table payloads arrive from an upstream document-extraction step and
// from analyst-written files, so they are frequently not strict JSON:
// trailing commas, comments, unquoted keys, markdown code fences. The
// helpers here normalize that input before it reaches the engine.

// RepairJSON attempts to fix common JSON defects in extracted payloads.
// Uses github.com/RealAlexandreAI/json-repair. Supported repairs include
// missing quotes around keys, single quotes, unclosed arrays/objects,
// trailing commas, comments, and surrounding markdown code blocks.
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
// Hjson supports comments, unquoted keys and strings, optional commas, and
// multiline strings — the format analysts actually write scenario files in.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(jsonBytes), nil
}

// ParseHJSONToStruct parses Hjson directly into a Go struct. Recommended
// when the schema is known.
func ParseHJSONToStruct(hjsonData string, schema interface{}) error {
	if err := hjson.Unmarshal([]byte(hjsonData), schema); err != nil {
		return fmt.Errorf("HJSON_UNMARSHAL_ERROR: %v", err)
	}
	return nil
}

// SmartParse tries multiple parsing strategies to get valid input into the
// schema. Order of attempts:
// 1. Standard JSON parse
// 2. JSON repair
// 3. Hjson parse (most lenient)
func SmartParse(input string, schema interface{}) (string, error) {
	// Try 1: Standard JSON
	if err := json.Unmarshal([]byte(input), schema); err == nil {
		return input, nil
	}

	// Try 2: JSON Repair
	repaired, err := RepairJSON(input)
	if err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return repaired, nil
		}
	}

	// Try 3: Hjson (most lenient)
	hjsonResult, err := ParseHJSON(input)
	if err == nil {
		if err := json.Unmarshal([]byte(hjsonResult), schema); err == nil {
			return hjsonResult, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input")
}
