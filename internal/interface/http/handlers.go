package http

import (
	"bufio"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/impact-hub/partner-portal/internal/application/command"
	"github.com/impact-hub/partner-portal/internal/application/query"
	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every check; 503 when any check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{
			"status":  "healthy",
			"uptime":  s.Uptime().Round(time.Second).String(),
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady handles the readiness check; only critical checks count.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness check.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleSignUp handles POST /api/v1/auth/sign-up
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.SignUp.Handle(r.Context(), command.SignUpCommand{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

// handleSignIn handles POST /api/v1/auth/sign-in
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.SignIn.Handle(r.Context(), command.SignInCommand{Email: req.Email, Password: req.Password})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type updateProfileRequest struct {
	FullName  *string `json:"full_name"`
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"avatar_url"`
}

func principal(r *http.Request) identity.Principal {
	p, _ := identity.PrincipalFrom(r.Context())
	return p
}

// handleGetMe handles GET /api/v1/me
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	pt, err := s.deps.Partners.Get(r.Context(), p, p.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, pt)
}

// handleUpdateMe handles PUT /api/v1/me
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	pt, err := s.deps.UpdateProfile.Handle(r.Context(), command.UpdateProfileCommand{
		Principal: principal(r),
		FullName:  req.FullName,
		Phone:     req.Phone,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, pt)
}

// handleDashboard handles GET /api/v1/me/dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Partners.Dashboard(r.Context(), principal(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}

// handleMyRank handles GET /api/v1/me/rank
func (s *Server) handleMyRank(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	progress, err := s.deps.Partners.Rank(r.Context(), p, p.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, progress)
}

// handleListRanks handles GET /api/v1/ranks
func (s *Server) handleListRanks(w http.ResponseWriter, r *http.Request) {
	ranks := s.deps.Partners.Ranks()
	writeJSONWithMeta(w, r, http.StatusOK, ranks, &ResponseMeta{TotalCount: len(ranks)})
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTRIBUTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type submitContributionRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	ContributionDate string          `json:"contribution_date"`
	PaymentMethod    string          `json:"payment_method"`
	Notes            string          `json:"notes"`
}

type approveRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type approveResponse struct {
	Contribution  *contribution.Contribution `json:"contribution"`
	PointsAwarded int64                      `json:"points_awarded"`
	ImpactScore   int64                      `json:"impact_score"`
	Rank          rank.Name                  `json:"rank"`
	PreviousRank  rank.Name                  `json:"previous_rank"`
	RankUpgraded  bool                       `json:"rank_upgraded"`
}

const dateLayout = "2006-01-02"

func invalidField(op, msg string) error {
	return shared.Validation("contribution", op, msg)
}

// handleSubmitContribution handles POST /api/v1/contributions.
// Accepts multipart/form-data (with an optional "proof" file) or JSON.
func (s *Server) handleSubmitContribution(w http.ResponseWriter, r *http.Request) {
	cmd := command.SubmitContributionCommand{Principal: principal(r)}

	var req submitContributionRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if !errors.As(err, &tooLarge) {
				err = invalidField("Submit", "malformed multipart form")
			}
			s.writeError(w, r, err)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
		if err != nil {
			s.writeError(w, r, invalidField("Submit", "amount must be a number"))
			return
		}
		req = submitContributionRequest{
			Amount:           amount,
			ContributionDate: r.FormValue("contribution_date"),
			PaymentMethod:    r.FormValue("payment_method"),
			Notes:            r.FormValue("notes"),
		}

		file, header, err := r.FormFile("proof")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			s.writeError(w, r, invalidField("Submit", "proof file could not be read"))
			return
		default:
			defer file.Close()
			// the declared type is not trusted; sniff the first bytes
			body := bufio.NewReaderSize(file, 512)
			head, _ := body.Peek(512)
			cmd.Proof = &contribution.Proof{
				ContentType: http.DetectContentType(head),
				Size:        header.Size,
				Body:        body,
			}
		}
	} else if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(req.ContributionDate))
	if err != nil {
		s.writeError(w, r, invalidField("Submit", "contribution_date must be YYYY-MM-DD"))
		return
	}
	cmd.Amount = req.Amount
	cmd.ContributionDate = date
	cmd.PaymentMethod = contribution.PaymentMethod(req.PaymentMethod)
	cmd.Notes = req.Notes

	res, err := s.deps.Submit.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res.Contribution)
}

// handleListContributions handles GET /api/v1/contributions
func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.deps.Contributions.List(r.Context(), query.ListContributionsQuery{
		Principal: principal(r),
		All:       queryBool(r, "all"),
		PartnerID: q.Get("partner_id"),
		Status:    q.Get("status"),
		Sort:      q.Get("sort"),
		Ascending: strings.EqualFold(q.Get("order"), "asc"),
		Limit:     queryInt(r, "limit", shared.DefaultPageSize),
		Offset:    queryInt(r, "offset", 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, res.Items, &ResponseMeta{
		TotalCount: len(res.Items),
		Limit:      res.Limit,
		Offset:     res.Offset,
	})
}

// handleProofURL handles GET /api/v1/contributions/{id}/proof
func (s *Server) handleProofURL(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Contributions.ProofURL(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleApprove handles POST /api/v1/contributions/{id}/approve
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Approve.Handle(r.Context(), command.ApproveContributionCommand{
		Principal:      principal(r),
		ContributionID: chi.URLParam(r, "id"),
		Amount:         req.Amount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, approveResponse{
		Contribution:  res.Contribution,
		PointsAwarded: res.PointsAwarded,
		ImpactScore:   res.Partner.ImpactScore,
		Rank:          res.Partner.Rank,
		PreviousRank:  res.PreviousRank,
		RankUpgraded:  res.RankUpgraded,
	})
}

// handleReject handles POST /api/v1/contributions/{id}/reject
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Reject.Handle(r.Context(), command.RejectContributionCommand{
		Principal:      principal(r),
		ContributionID: chi.URLParam(r, "id"),
		Reason:         req.Reason,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res.Contribution)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard/{period}
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Leaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Period: chi.URLParam(r, "period"),
		Limit:  queryInt(r, "limit", 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleGetPosition handles GET /api/v1/leaderboard/{period}/partners/{id}
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Leaderboard.PositionOf(r.Context(), query.GetPositionQuery{
		Period:    chi.URLParam(r, "period"),
		PartnerID: chi.URLParam(r, "id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleListRecognitions handles GET /api/v1/recognitions
func (s *Server) handleListRecognitions(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Inbox.Recognitions(r.Context(), queryInt(r, "limit", shared.DefaultPageSize))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, recs, &ResponseMeta{TotalCount: len(recs)})
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListNotifications handles GET /api/v1/notifications
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	inbox, err := s.deps.Inbox.Inbox(r.Context(), principal(r).UserID, queryInt(r, "limit", 0))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, inbox)
}

// handleMarkRead handles POST /api/v1/notifications/{id}/read
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	err := s.deps.MarkRead.MarkRead(r.Context(), command.MarkReadCommand{
		UserID:         principal(r).UserID,
		NotificationID: chi.URLParam(r, "id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"read": true})
}

// handleMarkAllRead handles POST /api/v1/notifications/read-all
func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.MarkRead.MarkAllRead(r.Context(), command.MarkAllReadCommand{UserID: principal(r).UserID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
