package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/types"
	"github.com/moshaveran/moshaver-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "moshaver", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.Chat{},
		&types.Message{},
		&types.LearnedKnowledge{},
		&types.ConversationFeedback{},
		&types.Task{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []struct {
		table string
		name  string
		stmt  string
	}{
		{
			table: "chats",
			name:  "fk_chats_user_id",
			stmt: `ALTER TABLE "chats"
				ADD CONSTRAINT "fk_chats_user_id"
				FOREIGN KEY ("user_id") REFERENCES "users"("id")`,
		},
		{
			table: "messages",
			name:  "fk_messages_chat_id",
			stmt: `ALTER TABLE "messages"
				ADD CONSTRAINT "fk_messages_chat_id"
				FOREIGN KEY ("chat_id") REFERENCES "chats"("id")`,
		},
		// Tasks are the only child rows removed with their chat.
		{
			table: "tasks",
			name:  "fk_tasks_chat_id",
			stmt: `ALTER TABLE "tasks"
				ADD CONSTRAINT "fk_tasks_chat_id"
				FOREIGN KEY ("chat_id") REFERENCES "chats"("id")
				ON DELETE CASCADE`,
		},
	}
	for _, c := range constraints {
		if err := s.db.Exec(fmt.Sprintf(`ALTER TABLE ONLY %q DROP CONSTRAINT IF EXISTS %q`, c.table, c.name)).Error; err != nil {
			return fmt.Errorf("failed to reset %s: %w", c.name, err)
		}
		if err := s.db.Exec(c.stmt).Error; err != nil {
			return fmt.Errorf("failed to add %s: %w", c.name, err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
