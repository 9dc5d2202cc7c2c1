package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/constant"
	"github.com/relkin/staffportal/internal/model"
)

type ServerRepository struct {
	Log *zap.Logger
	DB  *pgxpool.Pool
}

func NewServerRepository(zap *zap.Logger, db *pgxpool.Pool) *ServerRepository {
	return &ServerRepository{
		Log: zap,
		DB:  db,
	}
}

func (repository *ServerRepository) CreateServer(ctx context.Context, server model.GameServer) error {
	query := "INSERT INTO servers (identifier, name) VALUES ($1,$2)"

	_, err := repository.DB.Exec(ctx, query, server.Identifier, server.Name)
	if err != nil {
		return err
	}

	return nil
}

func (repository *ServerRepository) DeleteServer(ctx context.Context, identifier string) error {
	query := "DELETE FROM servers WHERE identifier=$1"

	_, err := repository.DB.Exec(ctx, query, identifier)
	if err != nil {
		return err
	}

	return nil
}

func (repository *ServerRepository) GetServer(ctx context.Context, identifier string) (model.GameServer, error) {
	query := "SELECT identifier, name FROM servers WHERE identifier=$1 LIMIT 1"

	server := model.GameServer{}
	err := repository.DB.QueryRow(ctx, query, identifier).Scan(&server.Identifier, &server.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return server, &model.ValidationError{
				Code:    constant.ERR_NOT_FOUND_ERROR,
				Message: "Server not found",
				Param:   "identifier",
			}
		}
		return server, err
	}

	return server, nil
}

func (repository *ServerRepository) ListServers(ctx context.Context) ([]model.GameServer, error) {
	query := "SELECT identifier, name FROM servers ORDER BY name"

	rows, err := repository.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []model.GameServer
	for rows.Next() {
		server := model.GameServer{}
		err = rows.Scan(&server.Identifier, &server.Name)
		if err != nil {
			return nil, err
		}
		servers = append(servers, server)
	}

	return servers, rows.Err()
}
