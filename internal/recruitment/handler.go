package recruitment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kmiyachi/castmatch/internal/matching"
	"github.com/kmiyachi/castmatch/internal/matching/points"
	"github.com/kmiyachi/castmatch/pkg/middleware"
	"github.com/kmiyachi/castmatch/pkg/request"
	"github.com/kmiyachi/castmatch/pkg/response"
)

// Handler handles HTTP requests for group recruitment operations
type Handler struct {
	service *Service
}

// NewHandler creates a new recruitment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for recruitment endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Post("/{id}/respond", h.Respond)
	r.Post("/{id}/join", h.Join)
	r.Post("/{id}/complete", h.CompleteParticipant)
	r.Post("/{id}/extend", h.Extend)
	r.Post("/{id}/cancel", h.Cancel)

	return r
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, matching.ErrMatchingNotFound), errors.Is(err, ErrNotInvited):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrRecruitmentFull):
		response.Conflict(w, err.Error())
	case errors.Is(err, matching.ErrNotGuestOwner):
		response.Forbidden(w, err.Error())
	case errors.Is(err, matching.ErrInvalidTransition),
		errors.Is(err, matching.ErrExtensionNotDue),
		errors.Is(err, matching.ErrWrongKind):
		response.UnprocessableEntity(w, err.Error())
	case errors.Is(err, ErrAgeFilterInvalid),
		errors.Is(err, matching.ErrProposedDateRequired),
		errors.Is(err, matching.ErrProposedDateConflict),
		errors.Is(err, matching.ErrOffsetNotPositive),
		errors.Is(err, points.ErrDurationOutOfRange),
		errors.Is(err, points.ErrExtensionNotPositive),
		errors.Is(err, points.ErrExtensionNotStepAligned):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, "Something went wrong")
	}
}

func recruitmentID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// Create handles POST /recruitments
// @Summary      Create a group recruitment
// @Description  Guest recruits several casts for one priced engagement; roster invitations fan out to all active casts passing the age filter
// @Tags         recruitments
// @Accept       json
// @Produce      json
// @Param        request body CreateGroupOfferRequest true "Group offer request"
// @Success      201 {object} response.APIResponse{data=CreateGroupOfferResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /recruitments [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	guestID, ok := middleware.GetGuestID(r.Context())
	if !ok {
		response.Unauthorized(w, "Guest authentication required")
		return
	}

	var req CreateGroupOfferRequest
	if err := request.DecodeAndValidate(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	rec, participantCount, err := h.service.CreateGroupOffer(r.Context(), guestID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, &CreateGroupOfferResponse{
		Matching:         rec.ToResponse(),
		ParticipantCount: participantCount,
	})
}

// GetByID handles GET /recruitments/{id}
// @Summary      Get recruitment by ID
// @Description  Group matching record with roster progress counts and the roster itself
// @Tags         recruitments
// @Produce      json
// @Param        id path int true "Matching ID"
// @Success      200 {object} response.APIResponse{data=RecruitmentResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /recruitments/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := recruitmentID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	rec, summary, participants, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	participantResponses := make([]*ParticipantResponse, len(participants))
	for i, p := range participants {
		participantResponses[i] = p.ToResponse()
	}

	response.JSON(w, http.StatusOK, &RecruitmentResponse{
		Matching:     rec.ToResponse(),
		Summary:      summary,
		Participants: participantResponses,
	})
}

// Respond handles POST /recruitments/{id}/respond
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	id, ok := recruitmentID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	castID, ok := middleware.GetCastID(r.Context())
	if !ok {
		response.Unauthorized(w, "Cast authentication required")
		return
	}

	var req matching.RespondRequest
	if err := request.DecodeAndValidate(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	rec, err := h.service.Respond(r.Context(), id, castID, req.Action == "accepted")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec.ToResponse())
}

// Join handles POST /recruitments/{id}/join
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	id, ok := recruitmentID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	castID, ok := middleware.GetCastID(r.Context())
	if !ok {
		response.Unauthorized(w, "Cast authentication required")
		return
	}

	rec, err := h.service.Join(r.Context(), id, castID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec.ToResponse())
}

// CompleteParticipant handles POST /recruitments/{id}/complete
func (h *Handler) CompleteParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := recruitmentID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	castID, ok := middleware.GetCastID(r.Context())
	if !ok {
		response.Unauthorized(w, "Cast authentication required")
		return
	}

	rec, err := h.service.CompleteParticipant(r.Context(), id, castID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec.ToResponse())
}

// Extend handles POST /recruitments/{id}/extend
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	id, ok := recruitmentID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	guestID, ok := middleware.GetGuestID(r.Context())
	if !ok {
		response.Unauthorized(w, "Guest authentication required")
		return
	}

	var req matching.ExtendRequest
	if err := request.DecodeAndValidate(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	rec, err := h.service.Extend(r.Context(), id, guestID, req.ExtensionMinutes)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec.ToResponse())
}

// Cancel handles POST /recruitments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := recruitmentID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	guestID, ok := middleware.GetGuestID(r.Context())
	if !ok {
		response.Unauthorized(w, "Guest authentication required")
		return
	}

	rec, err := h.service.Cancel(r.Context(), id, guestID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec.ToResponse())
}
