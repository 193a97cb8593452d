package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/remote"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/profiles"
)

// ProfileService captures access profiles from reference accounts.
type ProfileService struct {
	profiles profiles.Repository
	gateway  remote.Gateway
	logger   logging.Logger
}

func NewProfileService(prof profiles.Repository, gw remote.Gateway, logger logging.Logger) *ProfileService {
	return &ProfileService{profiles: prof, gateway: gw, logger: logger.With("module", "profiles")}
}

// Capture snapshots the folder access and home layout of a media server
// account. An account with access to every folder is expanded to the
// current folder list, so later library additions are not granted.
func (s *ProfileService) Capture(ctx context.Context, name, remoteAccountID string) (*models.AccessProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" || remoteAccountID == "" {
		return nil, fmt.Errorf("%w: name and source account are required", common.ErrValidation)
	}

	ra, err := s.gateway.GetAccount(ctx, remoteAccountID)
	if err != nil {
		return nil, err
	}

	folders := ra.Policy.EnabledFolders
	if ra.Policy.EnableAllFolders {
		all, err := s.gateway.ListLibraryFolders(ctx)
		if err != nil {
			return nil, err
		}
		folders = make([]string, 0, len(all))
		for _, f := range all {
			folders = append(folders, f.ID)
		}
	}

	layout, err := s.gateway.GetHomeLayout(ctx, remoteAccountID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.Create(ctx, &models.AccessProfile{
		Name:                  name,
		SourceRemoteAccountID: remoteAccountID,
		FolderIDs:             folders,
		HomeLayout:            layout,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "access profile captured", "profile", profile.ID, "folders", len(folders))
	return profile, nil
}

func (s *ProfileService) List(ctx context.Context) ([]models.AccessProfile, error) {
	return s.profiles.List(ctx)
}

func (s *ProfileService) Get(ctx context.Context, id string) (*models.AccessProfile, error) {
	return s.profiles.Get(ctx, id)
}

func (s *ProfileService) Delete(ctx context.Context, id string) error {
	return s.profiles.Delete(ctx, id)
}
