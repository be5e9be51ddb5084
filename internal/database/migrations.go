package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		is_global_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(255) NOT NULL,
		description TEXT,
		owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS project_members (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role VARCHAR(20) NOT NULL DEFAULT 'member'
			CHECK (role IN ('owner', 'admin', 'member')),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(project_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		title VARCHAR(255) NOT NULL,
		description TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'todo'
			CHECK (status IN ('todo', 'in_progress', 'done')),
		total_minutes INTEGER NOT NULL DEFAULT 0,
		project_id UUID REFERENCES projects(id) ON DELETE CASCADE,
		creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		assignee_id UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_projects_owner_id ON projects(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_project_members_project_id ON project_members(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_project_members_user_id ON project_members(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_creator_id ON tasks(creator_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assignee_id ON tasks(assignee_id)`,

	// One owner row per project, enforced at the storage layer as well.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_project_members_single_owner
		ON project_members(project_id) WHERE role = 'owner'`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
