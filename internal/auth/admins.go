package auth

import "context"

// Directory answers the one authorization question the engine asks:
// is this platform user an admin. Backed by static configuration; a
// deployment can substitute a role lookup against the platform.
type Directory struct {
	ids map[string]struct{}
}

func NewDirectory(adminIDs []string) *Directory {
	ids := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &Directory{ids: ids}
}

func (d *Directory) IsAdmin(_ context.Context, userID string) (bool, error) {
	_, ok := d.ids[userID]
	return ok, nil
}
