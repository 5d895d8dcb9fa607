package tools

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Typed builds a Tool whose arguments are decoded into T before fn runs.
// Fields of T are matched by their `mapstructure` tag. Loose input types
// are accepted: Lua numbers arrive as float64 and decode into int fields.
func Typed[T any](name, description string, params []Parameter, fn func(ctx context.Context, args T) (string, error)) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  params,
		Func: func(ctx context.Context, raw map[string]any) (string, error) {
			var args T
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				Result:           &args,
				WeaklyTypedInput: true,
				ErrorUnused:      true,
			})
			if err != nil {
				return "", err
			}
			if err := dec.Decode(raw); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			return fn(ctx, args)
		},
	}
}
