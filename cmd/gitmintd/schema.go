// Dumps JSON schemas for the stored entity types.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/invopop/jsonschema"

	"github.com/gitmint/gitmint/internal/models"
)

// dumpSchemas prints the schema of every collection's row type, keyed by
// collection name. Useful for validating documents produced by other
// writers.
func dumpSchemas(w io.Writer) error {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	schemas := map[string]*jsonschema.Schema{
		models.CollectionUsers:        r.Reflect(&models.User{}),
		models.CollectionRepositories: r.Reflect(&models.Repository{}),
		models.CollectionNFTs:         r.Reflect(&models.NFT{}),
		models.CollectionActivities:   r.Reflect(&models.Activity{}),
	}
	data, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schemas: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
