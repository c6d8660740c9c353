package scope

import (
	"context"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/dto"
	"ctrlbx/app/service/session"

	"github.com/samber/oops"
)

// Houses restricts what a mobile ADMIN sees to the houses assigned to them.
// A nil Houses is unrestricted.
type Houses map[string]bool

func (h Houses) Allows(houseID string) bool {
	return h == nil || h[houseID]
}

func (h Houses) Restricted() bool {
	return h != nil
}

// Resolve fetches the house scope of the current session. Only the mobile
// profile scopes by house, and MASTER is never scoped.
func Resolve(ctx context.Context, client *backend.Client, sess *session.Service) (Houses, error) {
	if sess.Profile() != dto.ProfileMobile || sess.IsMaster() || !sess.IsLoggedIn() {
		return nil, nil
	}

	ids, err := client.GetAdminHouses(ctx, sess.Email())
	if err != nil {
		return nil, oops.Errorf("GetAdminHouses: %w", err)
	}

	result := make(Houses, len(ids))
	for _, id := range ids {
		result[id] = true
	}

	return result, nil
}
