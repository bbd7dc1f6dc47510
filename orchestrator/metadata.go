package orchestrator

import (
	"os"

	"github.com/tkral/annomine/codec"
	"github.com/tkral/annomine/model"
)

// unitMetadata is the sidecar shape describing which spec produced an
// artifact. Kept one-struct-per-file-format so the JSON stays stable.
type unitMetadata struct {
	Key    string            `json:"key"`
	Kind   string            `json:"kind"`
	Source string            `json:"source"`
	Params map[string]string `json:"params"`
}

func metadataJSON(spec model.UnitSpec) ([]byte, error) {
	return codec.Default.Marshal(unitMetadata{
		Key:    spec.Key,
		Kind:   spec.Kind,
		Source: spec.Source,
		Params: spec.Params,
	})
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
