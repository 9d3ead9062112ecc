package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JoelGresham/teamPoll/internal/commands"
	"github.com/JoelGresham/teamPoll/internal/domain/poll"
	"github.com/JoelGresham/teamPoll/internal/services"
	"github.com/JoelGresham/teamPoll/internal/transport/httpdto"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
)

// AdminHandler serves /api/admin. Mutations go through the command bus; the poll
// service pushes the resulting events to connected sockets.
type AdminHandler struct {
	service *services.PollService
	bus     *commands.Bus
}

func NewAdminHandler(service *services.PollService, bus *commands.Bus) *AdminHandler {
	return &AdminHandler{service: service, bus: bus}
}

func (h *AdminHandler) ActivePoll(c *gin.Context) {
	session, err := h.service.GetActiveSession(c.Request.Context())
	if errors.Is(err, poll_errors.ErrNotFound) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ActivePollResponse{}))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ActivePollResponse{Poll: &session}))
}

func (h *AdminHandler) Create(c *gin.Context) {
	var req httpdto.CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION_ERROR"))
		return
	}
	res, ok := execute(c, h.bus, commands.CreatePollCommand{Spec: req.Spec(), OriginalPollID: req.RerunOf()})
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(res.Payload.(poll.Session)))
}

func (h *AdminHandler) List(c *gin.Context) {
	polls, err := h.service.ListSessions(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListPollsResponse{Polls: polls}))
}

func (h *AdminHandler) Get(c *gin.Context) {
	detail, err := h.service.GetSessionDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(detail))
}

func (h *AdminHandler) Update(c *gin.Context) {
	var req httpdto.UpdatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION_ERROR"))
		return
	}
	res, ok := execute(c, h.bus, commands.UpdatePollCommand{SessionID: c.Param("id"), Spec: req.Spec()})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res.Payload.(poll.Session)))
}

func (h *AdminHandler) Start(c *gin.Context) {
	res, ok := execute(c, h.bus, commands.StartPollCommand{SessionID: c.Param("id")})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res.Payload.(poll.Session)))
}

func (h *AdminHandler) End(c *gin.Context) {
	res, ok := execute(c, h.bus, commands.EndPollCommand{SessionID: c.Param("id")})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res.Payload.(poll.Session)))
}

func (h *AdminHandler) Rerun(c *gin.Context) {
	res, ok := execute(c, h.bus, commands.RerunPollCommand{SessionID: c.Param("id")})
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(res.Payload.(poll.Session)))
}

func (h *AdminHandler) Results(c *gin.Context) {
	results(c, h.service)
}

func (h *AdminHandler) Delete(c *gin.Context) {
	if _, ok := execute(c, h.bus, commands.DeletePollCommand{SessionID: c.Param("id")}); !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
