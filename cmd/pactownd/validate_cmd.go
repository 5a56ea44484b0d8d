package main

import (
	"fmt"
	"os"

	"github.com/pactown/pactown/internal/markpact"
)

// ValidateCmd runs the Validation component (spec §4.8) against a README
// without materializing a sandbox or starting anything, for pre-flight
// checks in CI or editor tooling.
type ValidateCmd struct {
	Readme string `arg:"" type:"existingfile" help:"path to the markpact README to validate"`
}

func (c *ValidateCmd) Run(appCtx *Context) error {
	content, err := os.ReadFile(c.Readme)
	if err != nil {
		return fmt.Errorf("pactownd: read %s: %w", c.Readme, err)
	}

	result := markpact.ValidateContent(string(content))
	for _, e := range result.Errors {
		fmt.Println(e)
	}
	if !result.Valid {
		return fmt.Errorf("pactownd: %s is not valid", c.Readme)
	}
	fmt.Printf("%s is valid\n", c.Readme)
	return nil
}
