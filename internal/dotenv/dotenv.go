// Package dotenv loads KEY=VALUE pairs from .env files into the process
// environment. Variables already set in the environment always win.
package dotenv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Load applies ./.env when it exists. Missing files are not an error.
func Load() error {
	return LoadFile(".env")
}

// LoadFile applies the named dotenv file to the process environment,
// skipping keys that are already set.
func LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open env file %q: %w", path, err)
	}
	defer file.Close()

	pairs, err := parse(file)
	if err != nil {
		return fmt.Errorf("parse env file %q: %w", path, err)
	}
	for key, val := range pairs {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return fmt.Errorf("set env %q from %q: %w", key, path, err)
		}
	}
	return nil
}

func parse(r io.Reader) (map[string]string, error) {
	pairs := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, val, ok := parseLine(scanner.Text())
		if ok {
			pairs[key] = val
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// parseLine handles "KEY=VALUE" with optional "export " prefix, comments,
// and single or double quotes around the value.
func parseLine(line string) (key, val string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, val, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}

	val = strings.TrimSpace(val)
	if len(val) >= 2 {
		first, last := val[0], val[len(val)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			val = val[1 : len(val)-1]
		}
	}
	return key, val, true
}
