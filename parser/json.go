// Package parser provides generic JSON parsing helpers for reading
// attribute bags, observation dumps, and reports from files and streams.
//
// The helpers stay type-agnostic: callers pick the target shape with a type
// parameter and the domain packages keep their own structures.
package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// ParseJSON parses a single JSON object into the target type.
func ParseJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &result, nil
}

// ParseJSONArray parses a JSON array into a slice of the target type.
func ParseJSONArray[T any](data []byte) ([]T, error) {
	var results []T
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse JSON array: %w", err)
	}
	return results, nil
}

// ParseJSONLines parses newline-delimited JSON, one value per line. Empty
// lines are skipped; a malformed line fails the whole parse with its line
// number.
func ParseJSONLines[T any](data []byte) ([]T, error) {
	var results []T
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		results = append(results, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading JSON lines: %w", err)
	}

	return results, nil
}

// ParseJSONFile reads a file and parses it as a single JSON object.
func ParseJSONFile[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	result, err := ParseJSON[T](data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return result, nil
}

// ParseJSONLinesFile reads a file and parses it as newline-delimited JSON.
func ParseJSONLinesFile[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	results, err := ParseJSONLines[T](data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return results, nil
}
