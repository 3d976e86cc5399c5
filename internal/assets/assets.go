package assets

import "context"

// Store persists generated binary assets and hands back a stable reference
// string. Adapters never return raw bytes to the router.
type Store interface {
	Save(ctx context.Context, data []byte, ext string) (string, error)
}
