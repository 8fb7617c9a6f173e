package http

import (
	"github.com/gofiber/fiber/v2"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"linkpulse/internal/links"
)

type linkView struct {
	ID          uint   `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	TargetURL   string `json:"target_url"`
	LastStatDay string `json:"last_stat_day,omitempty"`
}

// LinksIndexAction lists every tracked link with the date of its most recent
// daily stat, so the admin surface can spot links whose ingestion stalled
func LinksIndexAction(ctx *cartridge.Context) error {
	all, err := links.GetAllLinks(ctx.DB())
	if err != nil {
		ctx.Logger.Error("Failed to list links", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch links",
		})
	}

	views := make([]linkView, len(all))
	for i, link := range all {
		views[i] = linkView{
			ID:        link.ID,
			Slug:      link.Slug,
			Name:      link.Name,
			TargetURL: link.TargetURL,
		}
		if latest, err := links.LatestStatUpdate(ctx.DB(), link.ID); err == nil && !latest.IsZero() {
			views[i].LastStatDay = latest.UTC().Format(rangeTimeFormat)
		}
	}
	return ctx.JSON(fiber.Map{"links": views})
}

// LinkCreateAction registers a provider short link for tracking
func LinkCreateAction(ctx *cartridge.Context) error {
	var body struct {
		Slug      string `json:"slug"`
		Name      string `json:"name"`
		TargetURL string `json:"target_url"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	link := &links.Link{Slug: body.Slug, Name: body.Name, TargetURL: body.TargetURL}
	if err := links.CreateLink(ctx.DB(), link); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"link": linkView{
		ID:        link.ID,
		Slug:      link.Slug,
		Name:      link.Name,
		TargetURL: link.TargetURL,
	}})
}

// LinkTimeSeriesAction returns a link's raw daily click series
func LinkTimeSeriesAction(ctx *cartridge.Context) error {
	linkID, err := ctx.ParamsInt("id")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid link ID"})
	}

	series, err := links.GetTimeSeries(ctx.DB(), uint(linkID))
	if err != nil {
		if isNotFound(err) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		ctx.Logger.Error("Failed to load time series", slog.Any("error", err), slog.Int("linkID", linkID))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch time series",
		})
	}

	type dayView struct {
		Date   string `json:"date"`
		Clicks int64  `json:"clicks"`
	}
	days := make([]dayView, len(series))
	for i, day := range series {
		days[i] = dayView{Date: day.Date.Format(rangeTimeFormat), Clicks: day.Clicks}
	}
	return ctx.JSON(fiber.Map{"series": days})
}
