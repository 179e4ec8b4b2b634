package cast

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kmiyachi/castmatch/pkg/request"
	"github.com/kmiyachi/castmatch/pkg/response"
)

// Handler handles HTTP requests for cast operations
type Handler struct {
	service *Service
}

// NewHandler creates a new cast handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for cast endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
	r.Post("/{id}/deactivate", h.Deactivate)

	return r
}

// Create handles POST /casts
// @Summary      Register a cast
// @Description  Register a new cast in the active directory
// @Tags         casts
// @Accept       json
// @Produce      json
// @Param        request body CreateCastRequest true "Cast registration request"
// @Success      201 {object} response.APIResponse{data=CastResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /casts [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCastRequest
	if err := request.DecodeAndValidate(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	c, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.InternalError(w, "Failed to register cast")
		return
	}

	response.JSON(w, http.StatusCreated, c.ToResponse())
}

// List handles GET /casts
// @Summary      List casts
// @Description  List casts, optionally active-only within an age band
// @Tags         casts
// @Produce      json
// @Param        active query bool false "Only active casts"
// @Param        min_age query int false "Minimum age"
// @Param        max_age query int false "Maximum age"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]CastResponse}
// @Router       /casts [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}
	if v := r.URL.Query().Get("min_age"); v != "" {
		age, err := strconv.Atoi(v)
		if err != nil {
			response.BadRequest(w, "Invalid min_age")
			return
		}
		filter.MinAge = &age
	}
	if v := r.URL.Query().Get("max_age"); v != "" {
		age, err := strconv.Atoi(v)
		if err != nil {
			response.BadRequest(w, "Invalid max_age")
			return
		}
		filter.MaxAge = &age
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	casts, total, err := h.service.List(r.Context(), filter, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list casts")
		return
	}

	castResponses := make([]*CastResponse, len(casts))
	for i, c := range casts {
		castResponses[i] = c.ToResponse()
	}

	totalPages := (total + perPage - 1) / perPage
	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}

	response.JSONWithMeta(w, http.StatusOK, castResponses, meta)
}

// GetByID handles GET /casts/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid cast ID")
		return
	}

	c, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCastNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to get cast")
		return
	}

	response.JSON(w, http.StatusOK, c.ToResponse())
}

// Deactivate handles POST /casts/{id}/deactivate
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid cast ID")
		return
	}

	c, err := h.service.Deactivate(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCastNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to deactivate cast")
		return
	}

	response.JSON(w, http.StatusOK, c.ToResponse())
}
