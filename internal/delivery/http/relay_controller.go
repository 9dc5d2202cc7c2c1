package http

import (
	"context"
	"encoding/json"

	"github.com/bytedance/sonic"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/constant"
	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/relay"
	"github.com/relkin/staffportal/internal/usecase"
)

// RelayController owns the websocket endpoint game servers connect to and
// binds every relay event to its usecase.
type RelayController struct {
	Hub               *relay.Hub
	UserUsecase       *usecase.UserUsecase
	ModerationUsecase *usecase.ModerationUsecase
	ServerUsecase     *usecase.ServerUsecase
	Log               *zap.Logger
	Config            *koanf.Koanf
}

func NewRelayController(hub *relay.Hub, userUsecase *usecase.UserUsecase, moderationUsecase *usecase.ModerationUsecase, serverUsecase *usecase.ServerUsecase, zap *zap.Logger, koanf *koanf.Koanf) *RelayController {
	controller := &RelayController{
		Hub:               hub,
		UserUsecase:       userUsecase,
		ModerationUsecase: moderationUsecase,
		ServerUsecase:     serverUsecase,
		Log:               zap,
		Config:            koanf,
	}
	controller.registerHandlers()
	return controller
}

// Upgrade gates the relay endpoint to genuine websocket upgrades and
// stashes the presented secret for the session.
func (controller *RelayController) Upgrade() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(ctx) {
			return fiber.ErrUpgradeRequired
		}
		ctx.Locals("relayToken", ctx.Query("token"))
		return ctx.Next()
	}
}

// Handler runs one endpoint connection to completion.
func (controller *RelayController) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		token, _ := conn.Locals("relayToken").(string)
		controller.Hub.Serve(conn, token)
	})
}

func (controller *RelayController) registerHandlers() {
	controller.Hub.Handle(model.EventAddUser, controller.addUser)
	controller.Hub.Handle(model.EventGetBanned, controller.getBanned)
	controller.Hub.Handle(model.EventAddWarn, controller.addWarn)
	controller.Hub.Handle(model.EventAddKick, controller.addKick)
	controller.Hub.Handle(model.EventAddBan, controller.addBan)
	controller.Hub.Handle(model.EventAddCommend, controller.addCommend)
	controller.Hub.Handle(model.EventGetAceGroups, controller.getAceGroups)
	controller.Hub.Handle(model.EventGetTrustscore, controller.getTrustscore)
	controller.Hub.Handle(model.EventAddRecentPlayer, controller.addRecentPlayer)
}

func (controller *RelayController) addUser(ctx context.Context, sess *relay.Session, data json.RawMessage) (interface{}, error) {
	var req model.AddUserRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	if err := controller.UserUsecase.AddUser(ctx, req); err != nil {
		return nil, err
	}

	return model.AckResponse{Ok: true}, nil
}

func (controller *RelayController) getBanned(ctx context.Context, sess *relay.Session, data json.RawMessage) (interface{}, error) {
	var req model.IdentityRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	status, err := controller.ModerationUsecase.CheckBan(ctx, req.Id)
	if err != nil {
		return nil, err
	}

	return status, nil
}

func (controller *RelayController) addWarn(ctx context.Context, sess *relay.Session, data json.RawMessage) (interface{}, error) {
	var req model.ModerationRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	if err := controller.ModerationUsecase.Warn(ctx, req.Staff, req.Id, req.Reason); err != nil {
		return nil, err
	}

	return model.AckResponse{Ok: true}, nil
}

func (controller *RelayController) addKick(ctx context.Context, sess *relay.Session, data json.RawMessage) (interface{}, error) {
	var req model.ModerationRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	if err := controller.ModerationUsecase.Kick(ctx, req.Staff, req.Id, req.Reason); err != nil {
		return nil, err
	}

	return model.AckResponse{Ok: true}, nil
}

func (controller *RelayController) addBan(ctx context.Context, sess *relay.Session, data json.RawMessage) (interface{}, error) {
	var req model.ModerationRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	if err := controller.ModerationUsecase.Ban(ctx, req.Staff, req.Id, req.Reason, req.Length); err != nil {
		return nil, err
	}

	return model.AckResponse{Ok: true}, nil
}

func (controller *RelayController) addCommend(ctx context.Context, sess *relay.Session, data json.RawMessage) (interface{}, error) {
	var req model.ModerationRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	if err := controller.ModerationUsecase.Commend(ctx, req.Staff, req.Id, req.Reason); err != nil {
		return nil, err
	}

	return model.AckResponse{Ok: true}, nil
}

func (controller *RelayController) getAceGroups(ctx context.Context, sess *relay.Session, data json.RawMessage) (interface{}, error) {
	var req model.IdentityRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	groups, err := controller.ModerationUsecase.AceGroups(ctx, req.Id)
	if err != nil {
		return nil, err
	}

	return model.AceGroupsResponse{Groups: groups}, nil
}

func (controller *RelayController) getTrustscore(ctx context.Context, sess *relay.Session, data json.RawMessage) (interface{}, error) {
	var req model.TrustscoreRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	// staff may look up another player's score; that needs the capability
	subject := req.Id
	if req.TargetId != "" && req.TargetId != req.Id {
		if err := controller.ModerationUsecase.Authorize(ctx, req.Id, constant.CapStaff); err != nil {
			return nil, err
		}
		subject = req.TargetId
	}

	score, err := controller.UserUsecase.GetTrustscore(ctx, subject)
	if err != nil {
		return nil, err
	}

	return score, nil
}

func (controller *RelayController) addRecentPlayer(ctx context.Context, sess *relay.Session, data json.RawMessage) (interface{}, error) {
	var req model.RecentPlayerRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	controller.ServerUsecase.AddRecentPlayer(ctx, req)

	return model.AckResponse{Ok: true}, nil
}
