package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"linkpulse/internal/settings"
)

// SettingsShowAction reports whether provider credentials are configured.
// The token itself is never echoed back.
func SettingsShowAction(ctx *cartridge.Context) error {
	apiBase, err := settings.GetSetting(ctx.DB(), settings.KeyProviderAPIBase)
	if err != nil {
		ctx.Logger.Error("Failed to load settings", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load settings",
		})
	}

	return ctx.JSON(fiber.Map{
		"provider_api_base":   apiBase,
		"provider_configured": settings.IsProviderConfigured(ctx.DB()),
	})
}

// SettingsUpdateAction stores the tracking provider API credentials
func SettingsUpdateAction(ctx *cartridge.Context) error {
	var body struct {
		Token   string `json:"provider_api_token"`
		APIBase string `json:"provider_api_base"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	token := strings.TrimSpace(body.Token)
	if token == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "provider_api_token is required"})
	}

	if err := settings.SaveProviderCredentials(ctx.DB(), token, strings.TrimSpace(body.APIBase)); err != nil {
		ctx.Logger.Error("Failed to save provider credentials", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save settings",
		})
	}

	return ctx.JSON(fiber.Map{"status": "ok"})
}
