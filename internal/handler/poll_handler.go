package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JoelGresham/teamPoll/internal/commands"
	"github.com/JoelGresham/teamPoll/internal/services"
	"github.com/JoelGresham/teamPoll/internal/transport/httpdto"
)

// PollHandler serves the participant API under /api/poll.
type PollHandler struct {
	service *services.PollService
	bus     *commands.Bus
}

func NewPollHandler(service *services.PollService, bus *commands.Bus) *PollHandler {
	return &PollHandler{service: service, bus: bus}
}

func (h *PollHandler) Status(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromSession(session)))
}

func (h *PollHandler) Respond(c *gin.Context) {
	var req httpdto.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION_ERROR"))
		return
	}
	answer, err := httpdto.ParseAnswer(req.Answer)
	if err != nil {
		_ = c.Error(err)
		return
	}
	res, ok := execute(c, h.bus, commands.SubmitResponseCommand{
		SessionID:    c.Param("id"),
		QuestionID:   req.QuestionID,
		Answer:       answer,
		ConnectionID: req.ParticipantID,
		Origin:       c.ClientIP(),
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.RespondResponse{ResponseID: res.Payload.(string)}))
}

func (h *PollHandler) Results(c *gin.Context) {
	results(c, h.service)
}

func results(c *gin.Context, service *services.PollService) {
	id := c.Param("id")
	res, err := service.SessionAggregate(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ResultsResponse{SessionID: id, Results: res}))
}

// execute runs cmd. On failure the error is attached for the error middleware
// and false is returned.
func execute(c *gin.Context, bus *commands.Bus, cmd commands.Command) (commands.Result, bool) {
	res, err := bus.Execute(c.Request.Context(), cmd)
	if err != nil {
		_ = c.Error(err)
		return commands.Result{}, false
	}
	return res, true
}
