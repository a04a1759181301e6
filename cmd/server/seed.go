package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachAppRealtime/internal/config"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/saeid-a/CoachAppRealtime/internal/routes"
	"github.com/saeid-a/CoachAppRealtime/pkg/utils"
)

var demoUsers = []models.User{
	{ID: "coach-1", Name: "Reza", Role: models.RoleCoach},
	{ID: "member-1", Name: "Ali", Role: models.RoleMember},
	{ID: "member-2", Name: "Sara", Role: models.RoleMember},
}

// seedDemo creates one coach and two members. In development their tokens are
// logged so a client can be pointed at the sandbox right away.
func seedDemo(ctx context.Context, repos *routes.Repositories, cfg *config.Config, log zerolog.Logger) error {
	for _, user := range demoUsers {
		user := user
		if err := repos.Users.CreateUser(ctx, &user); err != nil {
			return err
		}

		event := log.Info().Str("user_id", user.ID).Str("name", user.Name).Str("role", string(user.Role))
		if cfg.IsDevelopment() {
			token, err := utils.GenerateToken(user.ID, string(user.Role), cfg.JWTSecret)
			if err != nil {
				return err
			}
			event = event.Str("token", token)
		}
		event.Msg("demo user seeded")
	}
	return nil
}
