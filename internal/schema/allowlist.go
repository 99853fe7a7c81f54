package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrTableMissing = errors.New("allowlisted table missing from schema")

// CheckAllowlist verifies that every allowlisted table exists in the
// introspected schema. It is run once at startup.
func CheckAllowlist(ctx context.Context, provider Provider, allowlist []string) error {
	description, err := provider.Describe(ctx)
	if err != nil {
		return fmt.Errorf("describe schema: %w", err)
	}
	var missing []string
	for _, name := range allowlist {
		if _, ok := description.Table(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrTableMissing, strings.Join(missing, ", "))
	}
	return nil
}
