package geography

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

// LoadCounties reads a JSON seed file of canonical counties. The file is
// an array of objects with name, state, and optional legal_description
// fields.
func LoadCounties(path string) ([]domain.County, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read counties seed: %w", err)
	}

	var entries []struct {
		Name             string `json:"name"`
		State            string `json:"state"`
		LegalDescription string `json:"legal_description"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse counties seed %s: %w", path, err)
	}

	counties := make([]domain.County, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.State == "" {
			return nil, fmt.Errorf("counties seed %s: entry missing name or state", path)
		}
		counties = append(counties, domain.County{
			Name:             e.Name,
			State:            e.State,
			LegalDescription: e.LegalDescription,
		})
	}
	return counties, nil
}
