/*
 Copyright 2023 NanaFS Authors.

 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package teamstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/basenana/egress/config"
	"github.com/basenana/egress/pkg/types"
	"github.com/basenana/egress/utils/logger"
)

// Store reads team webhook secrets from the team database.
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func New(cfg config.Team) (*Store, error) {
	var (
		dbEntity *gorm.DB
		err      error
	)
	switch cfg.Type {
	case config.SqliteTeamStore:
		dbEntity, err = gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{Logger: logger.NewGormLogger()})
	case config.PostgresTeamStore:
		dbEntity, err = gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{Logger: logger.NewGormLogger()})
	default:
		return nil, fmt.Errorf("%w: unknown team store type %s", types.ErrInvalidConfig, cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	dbConn, err := dbEntity.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Type == config.PostgresTeamStore {
		dbConn.SetMaxIdleConns(5)
		dbConn.SetMaxOpenConns(50)
		dbConn.SetConnMaxLifetime(time.Hour)
	}
	if err = dbConn.Ping(); err != nil {
		return nil, err
	}

	if err = migrate(dbEntity); err != nil {
		return nil, fmt.Errorf("migrate team store failed: %w", err)
	}
	return &Store{db: dbEntity, logger: logger.NewLogger("teamstore")}, nil
}

// TeamSecret returns types.ErrNotFound for unknown teams.
func (s *Store) TeamSecret(ctx context.Context, teamID string) (string, error) {
	team := &Team{}
	res := s.db.WithContext(ctx).Where("id = ?", teamID).First(team)
	if res.Error != nil {
		return "", sqlError2Error(res.Error)
	}
	return team.HMACSecret, nil
}

func (s *Store) SaveTeamSecret(ctx context.Context, teamID, secret string) error {
	team := &Team{ID: teamID, HMACSecret: secret, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hmac_secret", "updated_at"}),
	}).Create(team)
	if res.Error != nil {
		s.logger.Errorw("save team secret failed", "team", teamID, "err", res.Error)
		return res.Error
	}
	return nil
}

func (s *Store) Close() error {
	dbConn, err := s.db.DB()
	if err != nil {
		return err
	}
	return dbConn.Close()
}

func sqlError2Error(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ErrNotFound
	}
	return err
}
