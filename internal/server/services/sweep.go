package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/remote"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/sessions"
)

// SweepReport summarises one expiry sweep. Disabled counts accounts newly
// marked disabled; Lagging counts accounts disabled by an earlier sweep whose
// remote policy was still enabled and had to be pushed again.
type SweepReport struct {
	Disabled       int
	LocalOnly      int
	RemoteDisabled int
	RemoteFailed   int
	Lagging        int
	SessionsPurged int64
}

// SweepService enforces account expiry on both stores.
type SweepService struct {
	accounts accounts.Repository
	sessions sessions.Repository
	gateway  remote.Gateway
	logger   logging.Logger
	now      Clock

	mu sync.Mutex
	// pending holds ids of disabled accounts whose remote disable has not
	// been confirmed yet.
	pending map[string]struct{}
	// scanned is set once a full catch-up scan has succeeded; until then
	// pending may miss failures from before the process started.
	scanned bool
}

func NewSweepService(acc accounts.Repository, sess sessions.Repository, gw remote.Gateway, logger logging.Logger) *SweepService {
	return &SweepService{
		accounts: acc,
		sessions: sess,
		gateway:  gw,
		logger:   logger.With("module", "sweeper"),
		now:      time.Now,
		pending:  make(map[string]struct{}),
	}
}

// RunOnce performs a single sweep. Expired accounts are selected and marked
// disabled in one statement, so concurrent sweeps never process the same
// account twice. Remote failures are logged; local state is allowed to
// lead the media server until a later sweep catches up.
func (s *SweepService) RunOnce(ctx context.Context) (*SweepReport, error) {
	now := s.now()

	disabled, err := s.accounts.DisableExpired(ctx, now)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Disabled: len(disabled)}
	handled := make(map[string]struct{}, len(disabled))
	for _, a := range disabled {
		handled[a.ID] = struct{}{}
		if !a.Linked() {
			report.LocalOnly++
			s.logger.Info(ctx, "account expired", "account", a.ID, "username", a.UserName)
			continue
		}
		if err := setRemoteDisabled(ctx, s.gateway, *a.RemoteAccountID, true); err != nil {
			report.RemoteFailed++
			s.remember(a.ID)
			s.logger.Error(ctx, "failed to disable remote account",
				"account", a.ID, "remote_account", *a.RemoteAccountID, "error", err)
			continue
		}
		report.RemoteDisabled++
		s.logger.Info(ctx, "account expired", "account", a.ID, "username", a.UserName)
	}

	s.catchUp(ctx, now, handled, report)

	purged, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Warn(ctx, "failed to purge expired sessions", "error", err)
	}
	report.SessionsPurged = purged

	return report, nil
}

// catchUp re-pushes the disabled flag for expired accounts whose earlier
// remote write never landed. The first successful pass after start scans
// every account; later passes only revisit the ones that failed.
func (s *SweepService) catchUp(ctx context.Context, now time.Time, handled map[string]struct{}, report *SweepReport) {
	candidates, full, err := s.lagCandidates(ctx, now)
	if err != nil {
		s.logger.Warn(ctx, "failed to list accounts for catch-up", "error", err)
		return
	}
	for _, a := range candidates {
		if _, ok := handled[a.ID]; ok {
			continue
		}
		ra, err := s.gateway.GetAccount(ctx, *a.RemoteAccountID)
		if err != nil {
			s.remember(a.ID)
			s.logger.Warn(ctx, "failed to read remote account", "account", a.ID, "error", err)
			continue
		}
		if ra.Policy.IsDisabled {
			s.forget(a.ID)
			continue
		}
		report.Lagging++
		if err := setRemoteDisabled(ctx, s.gateway, *a.RemoteAccountID, true); err != nil {
			report.RemoteFailed++
			s.remember(a.ID)
			s.logger.Error(ctx, "failed to disable remote account",
				"account", a.ID, "remote_account", *a.RemoteAccountID, "error", err)
			continue
		}
		s.forget(a.ID)
		report.RemoteDisabled++
	}
	if full {
		s.mu.Lock()
		s.scanned = true
		s.mu.Unlock()
	}
}

// lagCandidates returns the disabled, expired and linked accounts to check
// against the media server, and whether they came from a full scan.
func (s *SweepService) lagCandidates(ctx context.Context, now time.Time) ([]models.Account, bool, error) {
	s.mu.Lock()
	scanned := s.scanned
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	if !scanned {
		all, err := s.accounts.List(ctx)
		if err != nil {
			return nil, false, err
		}
		out := all[:0]
		for _, a := range all {
			if lagCandidate(&a, now) {
				out = append(out, a)
			}
		}
		return out, true, nil
	}

	out := make([]models.Account, 0, len(ids))
	for _, id := range ids {
		a, err := s.accounts.GetByID(ctx, id)
		if errors.Is(err, common.ErrorNotFound) {
			s.forget(id)
			continue
		}
		if err != nil {
			s.logger.Warn(ctx, "failed to read account for catch-up", "account", id, "error", err)
			continue
		}
		if !lagCandidate(a, now) {
			// re-enabled or renewed since
			s.forget(id)
			continue
		}
		out = append(out, *a)
	}
	return out, false, nil
}

func lagCandidate(a *models.Account, now time.Time) bool {
	return a.IsDisabled && a.Expired(now) && a.Linked()
}

func (s *SweepService) remember(id string) {
	s.mu.Lock()
	s.pending[id] = struct{}{}
	s.mu.Unlock()
}

func (s *SweepService) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *SweepService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := s.RunOnce(ctx)
		if err != nil {
			s.logger.Error(ctx, "sweep failed", "error", err)
		} else if report.Disabled > 0 || report.Lagging > 0 || report.RemoteFailed > 0 {
			s.logger.Info(ctx, "sweep finished",
				"disabled", report.Disabled, "remote_disabled", report.RemoteDisabled,
				"remote_failed", report.RemoteFailed, "lagging", report.Lagging)
		}

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}
