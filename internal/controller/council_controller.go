package controller

import (
	"ai-deepsearch-be/internal/dto"
	"ai-deepsearch-be/internal/pkg/serverutils"
	"ai-deepsearch-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ICouncilController interface {
	RegisterRoutes(r fiber.Router)
	Backends(ctx *fiber.Ctx) error
	Start(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Stop(ctx *fiber.Ctx) error
	Vote(ctx *fiber.Ctx) error
}

type councilController struct {
	councilService service.ICouncilService
}

func NewCouncilController(councilService service.ICouncilService) ICouncilController {
	return &councilController{
		councilService: councilService,
	}
}

func (c *councilController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/council/v1")
	h.Get("backends", c.Backends)
	h.Post("", c.Start)
	h.Get(":id", c.Show)
	h.Post(":id/stop", c.Stop)
	h.Post(":id/vote", c.Vote)
}

func (c *councilController) Backends(ctx *fiber.Ctx) error {
	backends := c.councilService.Backends()

	res := make([]dto.BackendResponse, 0, len(backends))
	for _, b := range backends {
		res = append(res, dto.BackendResponse{
			ID:          b.ID,
			DisplayName: b.DisplayName,
			Kind:        b.Kind,
			Model:       b.Model,
		})
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list council backends", res))
}

func (c *councilController) Start(ctx *fiber.Ctx) error {
	var req dto.StartCouncilRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.councilService.Start(req.Query, req.BackendIDs)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success start council", res))
}

func (c *councilController) Show(ctx *fiber.Ctx) error {
	res, err := c.councilService.Get(ctx.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show council", res))
}

func (c *councilController) Stop(ctx *fiber.Ctx) error {
	res, err := c.councilService.Stop(ctx.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success stop council", res))
}

func (c *councilController) Vote(ctx *fiber.Ctx) error {
	var req dto.VoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.councilService.Vote(ctx.Params("id"), req.BackendID)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success cast vote", res))
}
