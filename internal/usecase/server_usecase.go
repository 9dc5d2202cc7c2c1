package usecase

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/constant"
	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/recent"
	"github.com/relkin/staffportal/internal/relay"
	"github.com/relkin/staffportal/internal/repository"
)

type ServerUsecase struct {
	ServerRepository *repository.ServerRepository
	Hub              *relay.Hub
	Recent           *recent.Tracker
	Log              *zap.Logger
	Config           *koanf.Koanf
}

func NewServerUsecase(serverRepository *repository.ServerRepository, hub *relay.Hub, tracker *recent.Tracker, zap *zap.Logger, koanf *koanf.Koanf) *ServerUsecase {
	return &ServerUsecase{
		ServerRepository: serverRepository,
		Hub:              hub,
		Recent:           tracker,
		Log:              zap,
		Config:           koanf,
	}
}

func (usecase *ServerUsecase) CreateServer(ctx *fiber.Ctx, payload model.ServerCreateRequest) error {
	if payload.Identifier == "" {
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Identifier is required to not be empty",
			Param:   "identifier",
		}
	}
	if payload.Name == "" {
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Name is required to not be empty",
			Param:   "name",
		}
	}

	return usecase.ServerRepository.CreateServer(ctx.Context(), model.GameServer{
		Identifier: payload.Identifier,
		Name:       payload.Name,
	})
}

func (usecase *ServerUsecase) DeleteServer(ctx *fiber.Ctx, identifier string) error {
	_, err := usecase.ServerRepository.GetServer(ctx.Context(), identifier)
	if err != nil {
		return err
	}

	return usecase.ServerRepository.DeleteServer(ctx.Context(), identifier)
}

// ListServers returns every registered endpoint with its live connection
// state from the relay.
func (usecase *ServerUsecase) ListServers(ctx *fiber.Ctx) ([]model.GameServer, error) {
	servers, err := usecase.ServerRepository.ListServers(ctx.Context())
	if err != nil {
		return nil, err
	}

	for i := range servers {
		servers[i].Connected = usecase.Hub.Connected(servers[i].Identifier)
	}

	return servers, nil
}

// GetServerDetail assembles the server page: live roster over the relay
// plus the recently disconnected players still inside their window.
func (usecase *ServerUsecase) GetServerDetail(ctx *fiber.Ctx, identifier string) (model.ServerDetailResponse, error) {
	response := model.ServerDetailResponse{}

	server, err := usecase.ServerRepository.GetServer(ctx.Context(), identifier)
	if err != nil {
		return response, err
	}

	response.Identifier = server.Identifier
	response.Name = server.Name
	response.Connected = usecase.Hub.Connected(identifier)

	if response.Connected {
		players, err := usecase.Hub.Players(ctx.Context(), &identifier)
		if err != nil {
			// endpoint dropped between the check and the call
			usecase.Log.Debug("roster fetch failed", zap.String("identifier", identifier), zap.Error(err))
		} else {
			response.Players = players
			response.TotalPlayers = len(players)
		}
	}

	for _, entry := range usecase.Recent.ForServer(identifier) {
		response.RecentPlayers = append(response.RecentPlayers, model.RecentPlayer{
			Id:     entry.Identity,
			Name:   entry.Name,
			Reason: entry.Reason,
		})
	}

	return response, nil
}

// AddRecentPlayer records a drop reported over the relay.
func (usecase *ServerUsecase) AddRecentPlayer(ctx context.Context, req model.RecentPlayerRequest) {
	usecase.Recent.Add(req.Identifier, req.Id, req.Name, req.Reason)
}
