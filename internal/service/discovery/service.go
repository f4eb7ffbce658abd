package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/agent"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/app"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/drops"
	svcErr "github.com/IdrisKulubi/strath-mobile-sub004/internal/errors"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/matching"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/quota"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/ranking"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/repository"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/scoring"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/session"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/utils/pagination"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/validation"
)

// Service implements the Discovery gRPC API.
// It resolves the viewer from the session and delegates to the matching,
// agent and drop components.
type Service struct {
	appCtx   *app.AppContext
	profiles *repository.ProfileRepository
	matcher  *matching.Matcher
	agent    *agent.Service
	drops    *drops.Service
}

// NewDiscoveryService creates a new Discovery service with dependencies from AppContext.
// Dependencies include:
//   - DB connection (profiles, drops, analytics events)
//   - RedisCache for the drop job lock and push hand-off
//   - Clock and matching limits from config
//
// dropSvc is shared with the drop scheduler so one process holds a single
// drop service.
func NewDiscoveryService(appCtx *app.AppContext, dropSvc *drops.Service) *Service {
	cfg := appCtx.Config
	profiles := repository.NewProfileRepository(appCtx.DB)
	matcher := matching.NewMatcher(profiles, scoring.NewEngine(), cfg.Matching.PoolSize, appCtx.Clock)
	quotas := quota.NewService(repository.NewAnalyticsRepository(appCtx.DB), cfg.Agent.DailySearchLimit, appCtx.Clock)

	return &Service{
		appCtx:   appCtx,
		profiles: profiles,
		matcher:  matcher,
		agent:    agent.NewService(quotas, matcher, cfg.Agent.ResultLimit),
		drops:    dropSvc,
	}
}

// GetCandidates returns one page of the viewer's ranked discovery feed.
//
// Behavior:
//   - Pool → reciprocal gate → score → rank (total desc, user id asc).
//   - page_size defaults to MATCHING_PAGE_SIZE; page_token continues a
//     previous page.
//   - has_more is true when the page came back full.
//
// Example:
//
//	svc.GetCandidates(ctx, &GetCandidatesRequest{PageSize: 20})
func (s *Service) GetCandidates(ctx context.Context, req *GetCandidatesRequest) (*GetCandidatesResponse, error) {
	log := logger.FromContext(ctx)
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	size, err := s.sizeOrDefault("page_size", req.PageSize, s.appCtx.Config.Matching.PageSize)
	if err != nil {
		return nil, err
	}
	viewer, err := s.viewer(ctx)
	if err != nil {
		return nil, s.fail(ctx, "resolve viewer", err)
	}

	cursor, err := pagination.Decode(req.PageToken)
	if errors.Is(err, pagination.ErrInvalidToken) {
		return nil, svcErr.InvalidArgument("page_token", "cursor", "page_token is invalid")
	}
	if err != nil {
		return nil, s.fail(ctx, "decode page token", err)
	}

	// every page of one walk is scored at the first page's instant
	at := cursor.ScoredAt(s.appCtx.Clock.Now())
	cursor.AsOf = at.UnixMilli()

	scored, err := s.matcher.MatchAt(ctx, viewer, at)
	if err != nil {
		return nil, s.fail(ctx, "match candidates", err)
	}

	page, err := ranking.Paginate(ranking.Rank(scored), cursor, size)
	if err != nil {
		return nil, s.fail(ctx, "paginate", err)
	}

	resp := &GetCandidatesResponse{
		Candidates:    candidateViews(page.Items),
		NextPageToken: page.NextToken,
		HasMore:       page.HasMore,
	}
	log.Debug("GetCandidates result", "pool", len(scored), "returned", len(resp.Candidates), "has_more", resp.HasMore)
	return resp, nil
}

// GetSections returns the recommended, similar-interests and campus
// sections. Sections may share candidates unless strict_dedupe is set.
func (s *Service) GetSections(ctx context.Context, req *GetSectionsRequest) (*GetSectionsResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	sectionSize, err := s.sizeOrDefault("section_size", req.SectionSize, s.appCtx.Config.Matching.SectionSize)
	if err != nil {
		return nil, err
	}
	viewer, err := s.viewer(ctx)
	if err != nil {
		return nil, s.fail(ctx, "resolve viewer", err)
	}

	scored, err := s.matcher.Match(ctx, viewer)
	if err != nil {
		return nil, s.fail(ctx, "match candidates", err)
	}

	opts := ranking.SectionOptions{
		Size:         sectionSize,
		StrictDedupe: s.appCtx.Config.Matching.StrictSectionDedupe,
	}
	if req.StrictDedupe != nil {
		opts.StrictDedupe = *req.StrictDedupe
	}

	resp := &GetSectionsResponse{Sections: []SectionView{}}
	for _, sec := range ranking.BuildSections(viewer, scored, opts) {
		resp.Sections = append(resp.Sections, SectionView{
			ID:       sec.ID,
			Title:    sec.Title,
			Type:     string(sec.Type),
			Profiles: candidateViews(sec.Profiles),
			HasMore:  sec.HasMore,
		})
	}
	return resp, nil
}

// EvaluateAgentQuery runs the guardrail only. It consumes no quota.
func (s *Service) EvaluateAgentQuery(ctx context.Context, req *EvaluateAgentQueryRequest) (*EvaluateAgentQueryResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	if _, err := s.viewerID(ctx); err != nil {
		return nil, svcErr.Map(err)
	}

	d := s.agent.Evaluate(req.Query)
	return &EvaluateAgentQueryResponse{
		Allowed:         d.Allowed,
		Code:            string(d.Code),
		NormalizedQuery: d.NormalizedQuery,
		UserMessage:     d.UserMessage,
	}, nil
}

// RunAgentSearch runs a guarded, quota-limited natural-language search.
// Rejections and exhausted quota are normal responses told apart by status.
func (s *Service) RunAgentSearch(ctx context.Context, req *RunAgentSearchRequest) (*RunAgentSearchResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	if _, err := s.sizeOrDefault("limit", req.Limit, 0); err != nil {
		return nil, err
	}
	viewer, err := s.viewer(ctx)
	if err != nil {
		return nil, s.fail(ctx, "resolve viewer", err)
	}

	res, err := s.agent.Search(ctx, viewer, agent.Request{Query: req.Query, Refine: req.Refine, Limit: req.Limit})
	if err != nil {
		return nil, s.fail(ctx, "agent search", err)
	}

	resp := &RunAgentSearchResponse{
		Status:          string(res.Status),
		Code:            string(res.Decision.Code),
		NormalizedQuery: res.Decision.NormalizedQuery,
		Message:         res.Message,
		Results:         candidateViews(res.Results),
	}
	if res.Status != agent.StatusRejected {
		q := quotaView(res.Quota)
		resp.Quota = &q
	}
	return resp, nil
}

// GetAgentQuota reports the viewer's agent search allowance for today.
func (s *Service) GetAgentQuota(ctx context.Context, _ *GetAgentQuotaRequest) (*GetAgentQuotaResponse, error) {
	id, err := s.viewerID(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	q, err := s.agent.Quota(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "get quota", err)
	}
	return &GetAgentQuotaResponse{Quota: quotaView(q)}, nil
}

// GetCurrentDrop returns the viewer's live weekly drop, or a null drop.
func (s *Service) GetCurrentDrop(ctx context.Context, _ *GetCurrentDropRequest) (*GetCurrentDropResponse, error) {
	id, err := s.viewerID(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	d, err := s.drops.GetCurrentDrop(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "current drop", err)
	}
	resp := &GetCurrentDropResponse{}
	if d != nil {
		v := dropView(*d)
		resp.Drop = &v
	}
	return resp, nil
}

// GetDropHistory returns expired drops, newest first, at most 20.
func (s *Service) GetDropHistory(ctx context.Context, _ *GetDropHistoryRequest) (*GetDropHistoryResponse, error) {
	id, err := s.viewerID(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	entries, err := s.drops.GetDropHistory(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "drop history", err)
	}
	resp := &GetDropHistoryResponse{Drops: make([]HistoryDropView, 0, len(entries))}
	for _, e := range entries {
		resp.Drops = append(resp.Drops, HistoryDropView{DropView: dropView(e.Drop), Previews: e.Previews})
	}
	return resp, nil
}

// OpenDrop marks one of the viewer's drops as opened. Expired drops are
// refused with FailedPrecondition; unknown or foreign ones with NotFound.
func (s *Service) OpenDrop(ctx context.Context, req *OpenDropRequest) (*OpenDropResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	id, err := s.viewerID(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	d, err := s.drops.OpenDrop(ctx, id, req.DropID)
	if err != nil {
		return nil, s.fail(ctx, "open drop", err)
	}
	return &OpenDropResponse{Drop: dropView(*d)}, nil
}

func (s *Service) viewerID(ctx context.Context) (uint64, error) {
	id := session.UserID(ctx)
	if id == 0 {
		return 0, svcErr.ErrUnauthenticated
	}
	return id, nil
}

func (s *Service) viewer(ctx context.Context) (*db.Profile, error) {
	id, err := s.viewerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.profiles.GetProfile(ctx, id)
}

// fail logs the cause and returns the client-facing status.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	mapped := svcErr.Map(err)
	log := logger.FromContext(ctx)
	if errors.Is(err, svcErr.ErrNotFound) || errors.Is(err, svcErr.ErrExpired) || errors.Is(err, svcErr.ErrUnauthenticated) {
		log.Debug(op+" refused", "err", err)
	} else {
		log.Error(op+" failed", "err", err)
	}
	return mapped
}

func candidateViews(cs []scoring.ScoredCandidate) []CandidateView {
	out := make([]CandidateView, 0, len(cs))
	for _, c := range cs {
		p := c.Profile
		out = append(out, CandidateView{
			UserID:       p.UserID,
			Name:         p.Name,
			Age:          p.Age,
			Bio:          p.Bio,
			ProfilePhoto: p.ProfilePhoto,
			Photos:       p.Photos,
			Gender:       p.Gender,
			University:   p.University,
			Course:       p.Course,
			YearOfStudy:  p.YearOfStudy,
			Interests:    p.Interests,
			Score:        c.Total,
			Breakdown:    c.Breakdown,
			Reasons:      c.Reasons,
		})
	}
	return out
}

func quotaView(q quota.Quota) QuotaView {
	return QuotaView{
		Used:        q.Used,
		Limit:       q.Limit,
		Remaining:   q.Remaining,
		IsExhausted: q.IsExhausted,
		ResetsAt:    q.ResetsAt,
	}
}

func dropView(d db.WeeklyDrop) DropView {
	return DropView{
		ID:             d.ID,
		DropNumber:     d.DropNumber,
		Status:         string(d.Status),
		Matches:        d.MatchData,
		MatchedUserIDs: d.MatchedUserIDs,
		CreatedAt:      d.CreatedAt,
		DeliveredAt:    d.DeliveredAt,
		OpenedAt:       d.OpenedAt,
		ExpiresAt:      d.ExpiresAt,
	}
}

// sizeOrDefault returns n, or def when n is unset. Sizes above
// MATCHING_MAX_PAGE_SIZE are refused.
func (s *Service) sizeOrDefault(field string, n, def int) (int, error) {
	if limit := s.appCtx.Config.Matching.MaxPageSize; n > limit {
		return 0, svcErr.InvalidArgument(field, "max", fmt.Sprintf("%s must be at most %d", field, limit))
	}
	if n == 0 {
		return def, nil
	}
	return n, nil
}
