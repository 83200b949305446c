package main

import (
	"encoding/json"
	"fmt"
	"io"

	"runview/internal/runclient"
)

// printResult writes res under the RESULTS: and AST: labels, or as a JSON object.
func printResult(w io.Writer, res runclient.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := fmt.Fprintf(w, "RESULTS:\n%s\n\nAST:\n%s\n", res.Results, res.AST)
	return err
}
