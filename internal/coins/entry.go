package coins

import (
	"encoding/json"
	"fmt"
)

// Entry is one coin in the upstream directory.
type Entry struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Directory is the ordered coin list used for name resolution during a run.
type Directory []Entry

// ParseDirectory decodes a JSON array of entries. Extra fields are ignored.
func ParseDirectory(data []byte) (Directory, error) {
	var dir Directory
	if err := json.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("decode coin directory: %w", err)
	}
	return dir, nil
}
