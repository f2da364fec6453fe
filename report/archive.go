package report

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/javking07/cleanbench/model"
)

// Archive stores the finished run document in the database, keyed by
// run id.
func Archive(storage model.Storage, res *model.RunResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	rows, err := storage.Insert(res.Metadata.RunID, payload)
	if err != nil {
		return fmt.Errorf("archiving run %s: %v", res.Metadata.RunID, err)
	}
	log.Info().Msgf("archived run %s (%d row)", res.Metadata.RunID, rows)
	return nil
}
