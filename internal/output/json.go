package output

import (
	"encoding/json"
	"fmt"

	"github.com/tamlil/tamlil/internal/atomicfile"
)

func writeJSON(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	data = append(data, '\n')
	if err := atomicfile.WriteFile(path, data, outputFilePerm); err != nil {
		return fmt.Errorf("write transcript.json: %w", err)
	}
	return nil
}
