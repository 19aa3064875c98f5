package controller

import (
	"strings"

	"ai-deepsearch-be/internal/dto"
	"ai-deepsearch-be/internal/pkg/serverutils"
	"ai-deepsearch-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IResearchController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Stop(ctx *fiber.Ctx) error
	Report(ctx *fiber.Ctx) error
	Deliver(ctx *fiber.Ctx) error
	SearchArchive(ctx *fiber.Ctx) error
	RecentArchive(ctx *fiber.Ctx) error
}

type researchController struct {
	researchService service.IResearchService
}

func NewResearchController(researchService service.IResearchService) IResearchController {
	return &researchController{
		researchService: researchService,
	}
}

func (c *researchController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/research/v1")
	// "archive/*" must be registered before ":id" or fiber swallows it.
	h.Get("archive/search", c.SearchArchive)
	h.Get("archive/recent", c.RecentArchive)
	h.Post("", c.Start)
	h.Get(":id", c.Show)
	h.Post(":id/stop", c.Stop)
	h.Get(":id/report", c.Report)
	h.Post(":id/deliver", c.Deliver)
}

func (c *researchController) Start(ctx *fiber.Ctx) error {
	var req dto.StartResearchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.researchService.Start(req.Query)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success start research", res))
}

func (c *researchController) Show(ctx *fiber.Ctx) error {
	res, err := c.researchService.Get(ctx.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show research", res))
}

func (c *researchController) Stop(ctx *fiber.Ctx) error {
	res, err := c.researchService.Stop(ctx.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success stop research", res))
}

// Report renders the session as plain text instead of the JSON envelope so
// the response can be piped straight into a file or pager.
func (c *researchController) Report(ctx *fiber.Ctx) error {
	report, err := c.researchService.Report(ctx.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return ctx.SendString(report)
}

func (c *researchController) Deliver(ctx *fiber.Ctx) error {
	var req dto.DeliverReportRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	err = c.researchService.Deliver(ctx.Params("id"), req.Email)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success request report delivery", nil))
}

func (c *researchController) SearchArchive(ctx *fiber.Ctx) error {
	q := ctx.Query("q", "")
	if strings.TrimSpace(q) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query parameter q is required")
	}
	limit := ctx.QueryInt("limit", 5)

	matches, err := c.researchService.SearchArchive(ctx.Context(), q, limit)
	if err != nil {
		return toHTTPError(err)
	}

	res := make([]dto.ArchiveMatchResponse, 0, len(matches))
	for _, m := range matches {
		res = append(res, dto.ArchiveMatchResponse{
			SessionId:  m.SessionId,
			Query:      m.Query,
			RunState:   m.RunState,
			Similarity: m.Similarity,
			CreatedAt:  m.CreatedAt,
		})
	}

	return ctx.JSON(serverutils.SuccessResponse("Success search research archive", res))
}

func (c *researchController) RecentArchive(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 20)

	entries, err := c.researchService.RecentArchive(ctx.Context(), limit)
	if err != nil {
		return toHTTPError(err)
	}

	res := make([]dto.ArchiveEntryResponse, 0, len(entries))
	for _, e := range entries {
		res = append(res, dto.ArchiveEntryResponse{
			SessionId: e.SessionId,
			Query:     e.Query,
			RunState:  e.RunState,
			CreatedAt: e.CreatedAt,
		})
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list recent research", res))
}
