package dbutils

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var update = flag.Bool("update", false, "update .golden files")

func GetUpdateFlag() bool {
	return *update
}

var patternNonAlphanumeric = regexp.MustCompile("[^A-Za-z0-9]")

// golden provides a way to read canned data from golden files as well as updating the files with new data.
type golden struct {
	Name   string
	update *bool
}

func (g golden) Write(data []byte) error {
	golden := g.GetFilename()
	err := os.WriteFile(golden, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write golden file %s : %w", golden, err)
	}
	return nil
}

func (g golden) Read() ([]byte, error) {
	golden := g.GetFilename()
	data, err := os.ReadFile(golden)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden file %s : %w", golden, err)
	}
	return data, nil
}

func (g golden) GetFilename() string {
	return "testdata/" + patternNonAlphanumeric.ReplaceAllString(g.Name, "-") + ".golden"
}

// Equal will determine if the JSON encoding of actual matches the value in the golden file.
// If the update flag is provided when testing, it will update the golden file to match actual.
func (g golden) Equal(t *testing.T, actual interface{}) bool {
	data, err := json.Marshal(actual)
	if err != nil {
		t.Errorf("Failed to marshal golden data, %v", err)
		return false
	}

	if (g.update == nil && GetUpdateFlag()) || (g.update != nil && *g.update) {
		buffer := bytes.Buffer{}
		_ = json.Indent(&buffer, data, "", "\t")

		if err := g.Write(buffer.Bytes()); err != nil {
			t.Errorf("Failed to update golden file, %v", err)
			return false
		}
	}

	expected, err := g.Read()
	if err != nil {
		t.Errorf("Failed to read golden file, %v", err)
		return false
	}

	return assert.JSONEq(t, string(expected), string(data), "expected output did not match")
}
