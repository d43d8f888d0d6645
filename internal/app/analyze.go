package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Analyze executes one analysis pass and prints the result as JSON. With an
// empty shopID every shop is analysed; otherwise only the named shop.
func (a *App) Analyze(ctx context.Context, shopID string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required for the analyze command")
	}
	defer closeStore()

	runner := a.newAnalyzer(store)

	if shopID == "" {
		return runner.RunAll(ctx)
	}

	result := runner.RunAnalysis(ctx, shopID)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("analysis failed: %s", result.Error)
	}
	return nil
}
