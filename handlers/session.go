// handlers/session.go
package handlers

import (
	"game-session-engine/middleware"
	"game-session-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSessionRoutes(
	app *fiber.App,
	gameService *services.GameService,
	admissionService *services.AdmissionService,
	eventService *services.EventService,
	authClient *services.AuthServiceClient,
) {
	// 🔓 Public reads — no user context, but still behind Gateway auth
	app.Get("/sessions/:id", gameService.GetSession)

	// Event stream authenticates via query params (EventSource can't set headers)
	app.Get("/sessions/:id/events", middleware.SSEAuthMiddleware(authClient), eventService.StreamSessionEventsSSE)

	// 🔐 Player routes — require user context from Gateway
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/sessions/:id/actions/join", admissionService.JoinSession)
	secured.Post("/sessions/:id/actions/leave", admissionService.LeaveSession)
	secured.Post("/sessions/:id/claims", gameService.ClaimSquare)
	secured.Post("/sessions/:id/invites/accept", admissionService.AcceptSessionInvite)

	// 🔐 Organizer routes
	organizer := secured.Group("/", middleware.RequireRole("organizer"))

	organizer.Post("/sessions", gameService.CreateSession)
	organizer.Post("/sessions/:id/actions/start", gameService.StartSession)
	organizer.Post("/sessions/:id/actions/eliminate", admissionService.EliminatePlayer)
	organizer.Post("/sessions/:id/invites", admissionService.CreateSessionInvite)
	organizer.Delete("/sessions/:id/invites/:player", admissionService.RevokeSessionInvite)
}
