package http

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"log/slog"

	"github.com/karloscodes/cartridge"
	"github.com/pariz/gountries"

	"linkpulse/internal/attribution"
	"linkpulse/internal/events"
	"linkpulse/internal/links"
)

var countryQuery = gountries.New()

// associationView is the JSON shape associations are served in, with country
// codes resolved to display names.
type associationView struct {
	ID             uint                `json:"id"`
	PublicID       string              `json:"public_id"`
	LinkID         uint                `json:"link_id"`
	EventID        uint                `json:"event_id"`
	RangeStart     *string             `json:"range_start"`
	RangeEnd       *string             `json:"range_end"`
	TotalClicks    int64               `json:"total_clicks"`
	TopCountries   []breakdownItemView `json:"top_countries"`
	TopReferrers   []breakdownItemView `json:"top_referrers"`
	AutoCalculated bool                `json:"auto_calculated"`
	UpdatedAt      string              `json:"updated_at"`
}

type breakdownItemView struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Clicks int64  `json:"clicks"`
}

const rangeTimeFormat = "2006-01-02"

func newAssociationView(assoc attribution.Association) associationView {
	view := associationView{
		ID:             assoc.ID,
		PublicID:       assoc.PublicID,
		LinkID:         assoc.LinkID,
		EventID:        assoc.EventID,
		TotalClicks:    assoc.TotalClicks,
		AutoCalculated: assoc.AutoCalculated,
		UpdatedAt:      assoc.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if assoc.RangeStart != nil {
		s := assoc.RangeStart.UTC().Format(rangeTimeFormat)
		view.RangeStart = &s
	}
	if assoc.RangeEnd != nil {
		s := assoc.RangeEnd.UTC().Format(rangeTimeFormat)
		view.RangeEnd = &s
	}
	view.TopCountries = decodeBreakdown(assoc.TopCountries, true)
	view.TopReferrers = decodeBreakdown(assoc.TopReferrers, false)
	return view
}

// decodeBreakdown turns a stored breakdown column into display rows. Country
// keys are alpha-2 codes and get resolved to country names; unknown codes
// fall back to the raw key.
func decodeBreakdown(raw []byte, resolveCountries bool) []breakdownItemView {
	items := []breakdownItemView{}
	if len(raw) == 0 {
		return items
	}

	var entries []attribution.BreakdownEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return items
	}

	for _, entry := range entries {
		item := breakdownItemView{Key: entry.Key, Name: entry.Key, Clicks: entry.Clicks}
		if resolveCountries {
			if country, err := countryQuery.FindCountryByAlpha(entry.Key); err == nil {
				item.Name = country.Name.Common
			}
		}
		items = append(items, item)
	}
	return items
}

// EventAssociationsListAction returns the associations of one event with
// their cached metrics (JSON API, display read path)
func EventAssociationsListAction(ctx *cartridge.Context) error {
	eventID, err := ctx.ParamsInt("id")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid event ID",
		})
	}

	assocs, err := attribution.GetAssociationsForEvent(ctx.DB(), uint(eventID))
	if err != nil {
		ctx.Logger.Error("Failed to list event associations", slog.Any("error", err), slog.Int("eventID", eventID))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch associations",
		})
	}

	views := make([]associationView, len(assocs))
	for i, assoc := range assocs {
		views[i] = newAssociationView(assoc)
	}
	return ctx.JSON(fiber.Map{"associations": views})
}

// LinkAssociationsListAction returns the partition of one link: every
// association ordered by range, tiling the whole timeline
func LinkAssociationsListAction(ctx *cartridge.Context) error {
	linkID, err := ctx.ParamsInt("id")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid link ID",
		})
	}

	assocs, err := attribution.GetAssociationsForLink(ctx.DB(), uint(linkID))
	if err != nil {
		ctx.Logger.Error("Failed to list link associations", slog.Any("error", err), slog.Int("linkID", linkID))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch associations",
		})
	}

	views := make([]associationView, len(assocs))
	for i, assoc := range assocs {
		views[i] = newAssociationView(assoc)
	}
	return ctx.JSON(fiber.Map{"associations": views})
}

// AssociateAction pairs a link with an event and returns the recalculated
// association
func AssociateAction(ctx *cartridge.Context) error {
	eventID, err := ctx.ParamsInt("id")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}
	linkID, err := ctx.ParamsInt("linkId")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid link ID"})
	}

	service := attribution.NewService(ctx.DBManager, ctx.Logger)
	assoc, err := service.Associate(context.Background(), uint(linkID), uint(eventID))
	if err != nil {
		return attributionErrorResponse(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"association": newAssociationView(*assoc)})
}

// DisassociateAction removes a link/event pairing and repartitions the rest
func DisassociateAction(ctx *cartridge.Context) error {
	eventID, err := ctx.ParamsInt("id")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}
	linkID, err := ctx.ParamsInt("linkId")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid link ID"})
	}

	service := attribution.NewService(ctx.DBManager, ctx.Logger)
	if err := service.Disassociate(context.Background(), uint(linkID), uint(eventID)); err != nil {
		return attributionErrorResponse(ctx, err)
	}

	return ctx.JSON(fiber.Map{"status": "ok"})
}

// RecalculateLinkAction triggers a manual full recalculation of one link
func RecalculateLinkAction(ctx *cartridge.Context) error {
	linkID, err := ctx.ParamsInt("id")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid link ID"})
	}

	service := attribution.NewService(ctx.DBManager, ctx.Logger)
	if err := service.RecalculateForLink(context.Background(), uint(linkID)); err != nil {
		return attributionErrorResponse(ctx, err)
	}

	return ctx.JSON(fiber.Map{"status": "ok"})
}

// attributionErrorResponse maps attribution error types to HTTP statuses
func attributionErrorResponse(ctx *cartridge.Context, err error) error {
	switch {
	case isNotFound(err):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case attribution.IsLockTimeout(err):
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case attribution.IsSourceUnavailable(err):
		return ctx.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	default:
		ctx.Logger.Error("Attribution operation failed", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Attribution operation failed"})
	}
}

func isNotFound(err error) bool {
	var linkNotFound *links.LinkNotFoundError
	var eventNotFound *events.EventNotFoundError
	return errors.As(err, &linkNotFound) || errors.As(err, &eventNotFound)
}
