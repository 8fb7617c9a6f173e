package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"linkpulse/internal/attribution"
	"linkpulse/internal/events"
	"linkpulse/internal/profiles"
)

type eventView struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	AnchorDate string `json:"anchor_date"`
	ProfileID  *uint  `json:"profile_id"`
}

func newEventView(event events.Event) eventView {
	return eventView{
		ID:         event.ID,
		Name:       event.Name,
		AnchorDate: event.AnchorDate.UTC().Format(rangeTimeFormat),
		ProfileID:  event.ProfileID,
	}
}

// batchView summarizes a batch association outcome for API responses
type batchView struct {
	Succeeded int    `json:"succeeded"`
	Failed    []uint `json:"failed_link_ids"`
}

func newBatchView(result attribution.BatchResult) batchView {
	failed := result.FailedLinkIDs()
	if failed == nil {
		failed = []uint{}
	}
	return batchView{Succeeded: result.Succeeded(), Failed: failed}
}

// EventsIndexAction lists every event
func EventsIndexAction(ctx *cartridge.Context) error {
	all, err := events.GetAllEvents(ctx.DB())
	if err != nil {
		ctx.Logger.Error("Failed to list events", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch events",
		})
	}

	views := make([]eventView, len(all))
	for i, event := range all {
		views[i] = newEventView(event)
	}
	return ctx.JSON(fiber.Map{"events": views})
}

// EventCreateAction creates an event. When the event belongs to a profile,
// the profile's default links are associated immediately; per-link failures
// are reported but never roll back the event itself.
func EventCreateAction(ctx *cartridge.Context) error {
	var body struct {
		Name       string `json:"name"`
		AnchorDate string `json:"anchor_date"`
		ProfileID  *uint  `json:"profile_id"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	anchor, err := time.Parse(rangeTimeFormat, body.AnchorDate)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "anchor_date must be formatted as YYYY-MM-DD",
		})
	}

	db := ctx.DB()

	var defaultLinks []uint
	if body.ProfileID != nil {
		defaultLinks, err = profiles.GetDefaultLinkIDs(db, *body.ProfileID)
		if err != nil {
			var profileNotFound *profiles.ProfileNotFoundError
			if errors.As(err, &profileNotFound) {
				return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
			}
			ctx.Logger.Error("Failed to load profile links", slog.Any("error", err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load profile links",
			})
		}
	}

	event := &events.Event{
		Name:       body.Name,
		AnchorDate: anchor,
		ProfileID:  body.ProfileID,
	}
	if err := events.CreateEvent(db, event); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	response := fiber.Map{"event": newEventView(*event)}
	if len(defaultLinks) > 0 {
		service := attribution.NewService(ctx.DBManager, ctx.Logger)
		result := service.BulkAssociate(context.Background(), defaultLinks, event.ID)
		response["associations"] = newBatchView(result)
	}

	return ctx.Status(fiber.StatusCreated).JSON(response)
}

// EventDeleteAction deletes an event and cascades into its associations,
// repartitioning every affected link. Links whose recalculation failed are
// listed so the caller can retry them.
func EventDeleteAction(ctx *cartridge.Context) error {
	eventID, err := ctx.ParamsInt("id")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}

	if err := events.DeleteEvent(ctx.DB(), uint(eventID)); err != nil {
		if isNotFound(err) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		ctx.Logger.Error("Failed to delete event", slog.Any("error", err), slog.Int("eventID", eventID))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete event",
		})
	}

	service := attribution.NewService(ctx.DBManager, ctx.Logger)
	result := service.HandleEventDeletion(context.Background(), uint(eventID))

	return ctx.JSON(fiber.Map{
		"status":       "ok",
		"associations": newBatchView(result),
	})
}
