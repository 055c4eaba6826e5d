package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type stubRepo struct {
	last shared.AuditQuery
	logs []shared.AuditLog
	err  error
}

func (s *stubRepo) Query(_ context.Context, q shared.AuditQuery) ([]shared.AuditLog, error) {
	s.last = q
	return s.logs, s.err
}

func manager() shared.Actor {
	return shared.Actor{BusinessID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleManager}
}

func seed(t *testing.T, logger *shared.MemoryAuditLogger, actor shared.Actor, n int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, logger.Record(context.Background(), shared.AuditLog{
			BusinessID: actor.BusinessID,
			ActorID:    actor.UserID,
			Action:     "sale:create",
			Entity:     "sale",
			EntityID:   uuid.NewString(),
			At:         base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestTimelinePagesNewestFirst(t *testing.T) {
	actor := manager()
	logger := shared.NewMemoryAuditLogger()
	seed(t, logger, actor, 5)
	svc := NewService(logger, rbac.NewDefaultPolicy())

	first, err := svc.Timeline(context.Background(), actor, TimelineFilters{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Rows, 2)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.True(t, first.Rows[0].At.After(first.Rows[1].At))

	last, err := svc.Timeline(context.Background(), actor, TimelineFilters{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, last.Rows, 1)
	require.False(t, last.Paging.HasNext)
	require.Equal(t, 2, last.Paging.PrevPage)
}

func TestTimelineClampsPageSizeAndPassesFilters(t *testing.T) {
	repo := &stubRepo{}
	actor := manager()
	svc := NewService(repo, rbac.NewDefaultPolicy())

	_, err := svc.Timeline(context.Background(), actor, TimelineFilters{PageSize: 500, Entity: " sale ", Action: "sale:cancel"})
	require.NoError(t, err)
	require.Equal(t, maxPageSize+1, repo.last.Limit)
	require.Equal(t, actor.BusinessID, repo.last.BusinessID)
	require.Equal(t, "sale", repo.last.Entity)
	require.Equal(t, "sale:cancel", repo.last.Action)
}

func TestTimelineRejectsBadRanges(t *testing.T) {
	svc := NewService(&stubRepo{}, rbac.NewDefaultPolicy())
	now := time.Now()

	_, err := svc.Timeline(context.Background(), manager(), TimelineFilters{From: now, To: now.Add(-time.Hour)})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = svc.Timeline(context.Background(), manager(), TimelineFilters{From: now.Add(-100 * 24 * time.Hour), To: now})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestTimelineRequiresPermission(t *testing.T) {
	svc := NewService(&stubRepo{}, rbac.NewDefaultPolicy())
	cashier := manager()
	cashier.Role = rbac.RoleCashier

	_, err := svc.Timeline(context.Background(), cashier, TimelineFilters{})
	require.Equal(t, shared.KindForbidden, shared.KindOf(err))
}

func TestExportWrapsRepositoryErrors(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(&stubRepo{err: boom}, rbac.NewDefaultPolicy())

	_, err := svc.Export(context.Background(), manager(), TimelineFilters{})
	require.ErrorIs(t, err, boom)
}

func TestWriteCSV(t *testing.T) {
	actor := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	body, err := WriteCSV([]TimelineRow{{
		At:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ActorID:  actor,
		Action:   "refund:create",
		Entity:   "refund",
		EntityID: "r-1",
	}})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Equal(t, []string{
		"at,actor_id,action,entity,entity_id",
		"2026-03-01T10:00:00Z,11111111-1111-1111-1111-111111111111,refund:create,refund,r-1",
	}, lines)
}
