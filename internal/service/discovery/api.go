package discovery

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/drops"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/scoring"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/utils/jsoncodec"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "strath.discovery.v1.DiscoveryService"

// CandidateView is a scored profile as sent to clients.
type CandidateView struct {
	UserID       uint64            `json:"user_id"`
	Name         string            `json:"name"`
	Age          int               `json:"age,omitempty"`
	Bio          string            `json:"bio,omitempty"`
	ProfilePhoto string            `json:"profile_photo,omitempty"`
	Photos       []string          `json:"photos,omitempty"`
	Gender       string            `json:"gender,omitempty"`
	University   string            `json:"university,omitempty"`
	Course       string            `json:"course,omitempty"`
	YearOfStudy  int               `json:"year_of_study,omitempty"`
	Interests    []string          `json:"interests,omitempty"`
	Score        float64           `json:"score"`
	Breakdown    scoring.Breakdown `json:"breakdown"`
	Reasons      []string          `json:"reasons,omitempty"`
}

type GetCandidatesRequest struct {
	// PageSize is capped by MATCHING_MAX_PAGE_SIZE.
	PageSize  int    `json:"page_size" validate:"omitempty,min=1"`
	PageToken string `json:"page_token" validate:"omitempty,max=512"`
}

type GetCandidatesResponse struct {
	Candidates    []CandidateView `json:"candidates"`
	NextPageToken string          `json:"next_page_token,omitempty"`
	HasMore       bool            `json:"has_more"`
}

type GetSectionsRequest struct {
	// SectionSize is capped by MATCHING_MAX_PAGE_SIZE.
	SectionSize int `json:"section_size" validate:"omitempty,min=1"`
	// StrictDedupe overrides the server default when set.
	StrictDedupe *bool `json:"strict_dedupe,omitempty"`
}

type SectionView struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Type     string          `json:"type"`
	Profiles []CandidateView `json:"profiles"`
	HasMore  bool            `json:"has_more"`
}

type GetSectionsResponse struct {
	Sections []SectionView `json:"sections"`
}

type EvaluateAgentQueryRequest struct {
	Query string `json:"query" validate:"max=500"`
}

type EvaluateAgentQueryResponse struct {
	Allowed         bool   `json:"allowed"`
	Code            string `json:"code,omitempty"`
	NormalizedQuery string `json:"normalized_query"`
	UserMessage     string `json:"user_message,omitempty"`
}

type RunAgentSearchRequest struct {
	Query  string `json:"query" validate:"max=500"`
	Refine bool   `json:"refine"`
	// Limit is capped by MATCHING_MAX_PAGE_SIZE.
	Limit  int    `json:"limit" validate:"omitempty,min=1"`
}

type QuotaView struct {
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	IsExhausted bool      `json:"is_exhausted"`
	ResetsAt    time.Time `json:"resets_at"`
}

type RunAgentSearchResponse struct {
	// Status is "ok", "rejected" or "quota_exhausted".
	Status          string          `json:"status"`
	Code            string          `json:"code,omitempty"`
	NormalizedQuery string          `json:"normalized_query"`
	Message         string          `json:"message,omitempty"`
	Results         []CandidateView `json:"results"`
	Quota           *QuotaView      `json:"quota,omitempty"`
}

type GetAgentQuotaRequest struct{}

type GetAgentQuotaResponse struct {
	Quota QuotaView `json:"quota"`
}

type DropView struct {
	ID             string         `json:"id"`
	DropNumber     int            `json:"drop_number"`
	Status         string         `json:"status"`
	Matches        []db.DropMatch `json:"matches"`
	MatchedUserIDs []uint64       `json:"matched_user_ids"`
	CreatedAt      time.Time      `json:"created_at"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	OpenedAt       *time.Time     `json:"opened_at,omitempty"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

type GetCurrentDropRequest struct{}

type GetCurrentDropResponse struct {
	// Drop is null when the viewer has no live drop.
	Drop *DropView `json:"drop"`
}

type GetDropHistoryRequest struct{}

type HistoryDropView struct {
	DropView
	Previews []drops.Preview `json:"previews"`
}

type GetDropHistoryResponse struct {
	Drops []HistoryDropView `json:"drops"`
}

type OpenDropRequest struct {
	DropID string `json:"drop_id" validate:"required,uuid"`
}

type OpenDropResponse struct {
	Drop DropView `json:"drop"`
}

// DiscoveryServer is the server API of the discovery service. The viewer
// is always the authenticated caller; no request names a user id.
type DiscoveryServer interface {
	GetCandidates(context.Context, *GetCandidatesRequest) (*GetCandidatesResponse, error)
	GetSections(context.Context, *GetSectionsRequest) (*GetSectionsResponse, error)
	EvaluateAgentQuery(context.Context, *EvaluateAgentQueryRequest) (*EvaluateAgentQueryResponse, error)
	RunAgentSearch(context.Context, *RunAgentSearchRequest) (*RunAgentSearchResponse, error)
	GetAgentQuota(context.Context, *GetAgentQuotaRequest) (*GetAgentQuotaResponse, error)
	GetCurrentDrop(context.Context, *GetCurrentDropRequest) (*GetCurrentDropResponse, error)
	GetDropHistory(context.Context, *GetDropHistoryRequest) (*GetDropHistoryResponse, error)
	OpenDrop(context.Context, *OpenDropRequest) (*OpenDropResponse, error)
}

// ServiceDesc describes DiscoveryServer to grpc.Server. Messages travel
// with the json codec, so there is no generated descriptor behind it.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DiscoveryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetCandidates", DiscoveryServer.GetCandidates),
		unary("GetSections", DiscoveryServer.GetSections),
		unary("EvaluateAgentQuery", DiscoveryServer.EvaluateAgentQuery),
		unary("RunAgentSearch", DiscoveryServer.RunAgentSearch),
		unary("GetAgentQuota", DiscoveryServer.GetAgentQuota),
		unary("GetCurrentDrop", DiscoveryServer.GetCurrentDrop),
		unary("GetDropHistory", DiscoveryServer.GetDropHistory),
		unary("OpenDrop", DiscoveryServer.OpenDrop),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "strath/discovery/v1",
}

// RegisterDiscoveryServer attaches srv to s.
func RegisterDiscoveryServer(s grpc.ServiceRegistrar, srv DiscoveryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns "/<service>/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](name string, call func(DiscoveryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DiscoveryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DiscoveryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client calls DiscoveryService over a gRPC connection using the json codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsoncodec.Name)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCandidates(ctx context.Context, in *GetCandidatesRequest, opts ...grpc.CallOption) (*GetCandidatesResponse, error) {
	return invoke[GetCandidatesResponse](ctx, c.cc, "GetCandidates", in, opts)
}

func (c *Client) GetSections(ctx context.Context, in *GetSectionsRequest, opts ...grpc.CallOption) (*GetSectionsResponse, error) {
	return invoke[GetSectionsResponse](ctx, c.cc, "GetSections", in, opts)
}

func (c *Client) EvaluateAgentQuery(ctx context.Context, in *EvaluateAgentQueryRequest, opts ...grpc.CallOption) (*EvaluateAgentQueryResponse, error) {
	return invoke[EvaluateAgentQueryResponse](ctx, c.cc, "EvaluateAgentQuery", in, opts)
}

func (c *Client) RunAgentSearch(ctx context.Context, in *RunAgentSearchRequest, opts ...grpc.CallOption) (*RunAgentSearchResponse, error) {
	return invoke[RunAgentSearchResponse](ctx, c.cc, "RunAgentSearch", in, opts)
}

func (c *Client) GetAgentQuota(ctx context.Context, in *GetAgentQuotaRequest, opts ...grpc.CallOption) (*GetAgentQuotaResponse, error) {
	return invoke[GetAgentQuotaResponse](ctx, c.cc, "GetAgentQuota", in, opts)
}

func (c *Client) GetCurrentDrop(ctx context.Context, in *GetCurrentDropRequest, opts ...grpc.CallOption) (*GetCurrentDropResponse, error) {
	return invoke[GetCurrentDropResponse](ctx, c.cc, "GetCurrentDrop", in, opts)
}

func (c *Client) GetDropHistory(ctx context.Context, in *GetDropHistoryRequest, opts ...grpc.CallOption) (*GetDropHistoryResponse, error) {
	return invoke[GetDropHistoryResponse](ctx, c.cc, "GetDropHistory", in, opts)
}

func (c *Client) OpenDrop(ctx context.Context, in *OpenDropRequest, opts ...grpc.CallOption) (*OpenDropResponse, error) {
	return invoke[OpenDropResponse](ctx, c.cc, "OpenDrop", in, opts)
}
