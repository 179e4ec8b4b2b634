package matching

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kmiyachi/castmatch/internal/matching/points"
	"github.com/kmiyachi/castmatch/pkg/middleware"
	"github.com/kmiyachi/castmatch/pkg/request"
	"github.com/kmiyachi/castmatch/pkg/response"
)

// Handler handles HTTP requests for solo matching operations
type Handler struct {
	service *Service
}

// NewHandler creates a new matching handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for matching endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/solo", h.CreateSoloOffer)
	r.Get("/{id}", h.GetByID)
	r.Post("/{id}/respond", h.Respond)
	r.Post("/{id}/start", h.Start)
	r.Post("/{id}/extend", h.Extend)
	r.Post("/{id}/complete", h.Complete)
	r.Post("/{id}/cancel", h.Cancel)

	return r
}

// writeServiceError maps lifecycle errors onto the response taxonomy
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMatchingNotFound), errors.Is(err, ErrCastNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrDuplicateOffer):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrNotCastOwner), errors.Is(err, ErrNotGuestOwner):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrExtensionNotDue), errors.Is(err, ErrWrongKind):
		response.UnprocessableEntity(w, err.Error())
	case errors.Is(err, ErrProposedDateRequired), errors.Is(err, ErrProposedDateConflict),
		errors.Is(err, ErrOffsetNotPositive),
		errors.Is(err, points.ErrDurationOutOfRange),
		errors.Is(err, points.ErrExtensionNotPositive),
		errors.Is(err, points.ErrExtensionNotStepAligned):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, "Something went wrong")
	}
}

func matchingID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// CreateSoloOffer handles POST /matchings/solo
// @Summary      Create a solo offer
// @Description  Guest offers a priced, time-boxed engagement to one cast
// @Tags         matchings
// @Accept       json
// @Produce      json
// @Param        request body CreateSoloOfferRequest true "Solo offer request"
// @Success      201 {object} response.APIResponse{data=MatchingResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /matchings/solo [post]
func (h *Handler) CreateSoloOffer(w http.ResponseWriter, r *http.Request) {
	guestID, ok := middleware.GetGuestID(r.Context())
	if !ok {
		response.Unauthorized(w, "Guest authentication required")
		return
	}

	var req CreateSoloOfferRequest
	if err := request.DecodeAndValidate(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	rec, err := h.service.CreateSoloOffer(r.Context(), guestID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, rec.ToResponse())
}

// GetByID handles GET /matchings/{id}
// @Summary      Get matching by ID
// @Tags         matchings
// @Produce      json
// @Param        id path int true "Matching ID"
// @Success      200 {object} response.APIResponse{data=MatchingResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /matchings/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := matchingID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	rec, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec.ToResponse())
}

// Respond handles POST /matchings/{id}/respond
// @Summary      Respond to a solo offer
// @Description  Cast accepts or rejects a pending offer addressed to them
// @Tags         matchings
// @Accept       json
// @Produce      json
// @Param        id path int true "Matching ID"
// @Param        request body RespondRequest true "accepted or rejected"
// @Success      200 {object} response.APIResponse{data=MatchingResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /matchings/{id}/respond [post]
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	id, ok := matchingID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	castID, ok := middleware.GetCastID(r.Context())
	if !ok {
		response.Unauthorized(w, "Cast authentication required")
		return
	}

	var req RespondRequest
	if err := request.DecodeAndValidate(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	rec, err := h.service.RespondSolo(r.Context(), id, castID, req.Action == "accepted")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec.ToResponse())
}

// Start handles POST /matchings/{id}/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := matchingID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	castID, ok := middleware.GetCastID(r.Context())
	if !ok {
		response.Unauthorized(w, "Cast authentication required")
		return
	}

	rec, err := h.service.StartSolo(r.Context(), id, castID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec.ToResponse())
}

// Extend handles POST /matchings/{id}/extend
// @Summary      Extend a running matching
// @Description  Guest adds time once the scheduled window has elapsed
// @Tags         matchings
// @Accept       json
// @Produce      json
// @Param        id path int true "Matching ID"
// @Param        request body ExtendRequest true "Extension in minutes, multiple of 30"
// @Success      200 {object} response.APIResponse{data=MatchingResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /matchings/{id}/extend [post]
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	id, ok := matchingID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	guestID, ok := middleware.GetGuestID(r.Context())
	if !ok {
		response.Unauthorized(w, "Guest authentication required")
		return
	}

	var req ExtendRequest
	if err := request.DecodeAndValidate(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	rec, err := h.service.ExtendSolo(r.Context(), id, guestID, req.ExtensionMinutes)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec.ToResponse())
}

// Complete handles POST /matchings/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := matchingID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	castID, ok := middleware.GetCastID(r.Context())
	if !ok {
		response.Unauthorized(w, "Cast authentication required")
		return
	}

	rec, err := h.service.CompleteSolo(r.Context(), id, castID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec.ToResponse())
}

// Cancel handles POST /matchings/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := matchingID(r)
	if !ok {
		response.BadRequest(w, "Invalid matching ID")
		return
	}

	guestID, ok := middleware.GetGuestID(r.Context())
	if !ok {
		response.Unauthorized(w, "Guest authentication required")
		return
	}

	rec, err := h.service.CancelSolo(r.Context(), id, guestID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec.ToResponse())
}
