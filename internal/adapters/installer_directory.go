package adapters

import (
	"context"

	authrepo "fieldops_backend/internal/auth/repository"
	authsvc "fieldops_backend/internal/auth/service"
	installsvc "fieldops_backend/internal/installs/service"

	"github.com/google/uuid"
)

// InstallerDirectory adapts the user store to the installs module's
// installer listing.
type InstallerDirectory struct {
	repo *authrepo.Repository
}

func NewInstallerDirectory(repo *authrepo.Repository) *InstallerDirectory {
	return &InstallerDirectory{repo: repo}
}

func (a *InstallerDirectory) ListInstallers(ctx context.Context, tenantID uuid.UUID) ([]installsvc.InstallerInfo, error) {
	users, err := a.repo.ListByRole(ctx, tenantID, authsvc.RoleInstaller)
	if err != nil {
		return nil, err
	}

	installers := make([]installsvc.InstallerInfo, 0, len(users))
	for _, user := range users {
		installers = append(installers, installsvc.InstallerInfo{
			ID:    user.ID,
			Name:  user.Name,
			Phone: user.Phone,
		})
	}
	return installers, nil
}

var _ installsvc.InstallerDirectory = (*InstallerDirectory)(nil)
