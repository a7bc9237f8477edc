package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.ready()
}

func (s Service) RollIn(ctx context.Context, req RollInRequest) RollInResult {
	return RunRollIn(ctx, req, s.deps)
}

func (s Service) CheckExisting(ctx context.Context, userID string) ExistingResult {
	return RunCheckExisting(ctx, userID, s.deps)
}

func (s Service) Logout(ctx context.Context, req LogoutRequest) LogoutResult {
	return RunLogout(ctx, req, s.deps)
}

func (s Service) Profile(ctx context.Context, req ProfileRequest) ProfileResult {
	return RunProfile(ctx, req, s.deps)
}
