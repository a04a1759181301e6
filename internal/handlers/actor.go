package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
)

var errNoActor = errors.New("missing actor")

// actorFromLocals reads the identity AuthRequired stored on the request.
func actorFromLocals(c *fiber.Ctx) (string, models.Role, error) {
	userID, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(string)
	if strings.TrimSpace(userID) == "" {
		return "", "", errNoActor
	}
	return userID, models.Role(role), nil
}
