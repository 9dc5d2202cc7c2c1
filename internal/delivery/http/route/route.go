package route

import (
	"github.com/relkin/staffportal/internal/constant"
	"github.com/relkin/staffportal/internal/delivery/http"
	"github.com/relkin/staffportal/internal/delivery/http/middleware"

	"github.com/gofiber/fiber/v2"
)

type RouteConfig struct {
	App             *fiber.App
	AuthMiddleware  *middleware.AuthMiddleware
	LoginLimiter    fiber.Handler
	UserController  *http.UserController
	StaffController *http.StaffController
	AdminController *http.AdminController
	RelayController *http.RelayController
}

func (c *RouteConfig) SetupRoute() {
	api := c.App.Group("/api")

	api.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"response": "ok", "status": "online"})
	})

	// game servers connect here, everything else is the dashboard
	c.App.Get("/relay", c.RelayController.Upgrade(), c.RelayController.Handler())

	authGroup := api.Group("/auth")
	authGroup.Post("/login", c.LoginLimiter, c.UserController.Login)

	userGroup := api.Group("/users", c.AuthMiddleware.ProtectedRoute())
	userGroup.Get("/me", c.UserController.GetProfile)
	userGroup.Get("/me/trustscore", c.UserController.GetTrustscore)
	userGroup.Post("/logout", c.UserController.Logout)

	staffGroup := api.Group("/staff", c.AuthMiddleware.ProtectedRoute(), c.AuthMiddleware.RequireCapability(constant.CapStaff))
	staffGroup.Get("/players", c.StaffController.ListPlayers)
	staffGroup.Get("/players/:playerId", c.StaffController.GetPlayerDetail)
	staffGroup.Post("/players/warn", c.StaffController.WarnPlayer)
	staffGroup.Post("/players/kick", c.StaffController.KickPlayer)
	staffGroup.Post("/players/ban", c.StaffController.BanPlayer)
	staffGroup.Post("/players/commend", c.StaffController.CommendPlayer)
	staffGroup.Post("/players/note", c.StaffController.NotePlayer)
	staffGroup.Delete("/records/:kind/:recordId", c.StaffController.RemoveRecord)
	staffGroup.Get("/stats", c.StaffController.GetOwnStats)
	staffGroup.Get("/servers", c.StaffController.ListServers)
	staffGroup.Get("/servers/:identifier", c.StaffController.GetServerDetail)

	adminGroup := api.Group("/admin", c.AuthMiddleware.ProtectedRoute(), c.AuthMiddleware.RequireCapability(constant.CapAdmin))
	adminGroup.Post("/servers", c.AdminController.CreateServer)
	adminGroup.Delete("/servers/:identifier", c.AdminController.DeleteServer)
	adminGroup.Get("/stats/:staffId", c.AdminController.GetStaffStats)
}
