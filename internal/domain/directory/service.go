package directory

import "context"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetProfile(ctx context.Context, id string) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetProfiles(ctx context.Context, ids []string) (map[string]*Profile, error) {
	return s.repo.GetByIDs(ctx, ids)
}
