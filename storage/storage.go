package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage provides access to the relational store backing the board.
type Storage struct {
	pool *pgxpool.Pool
}

// New connects a pool to the given Postgres DSN and verifies the
// connection before returning.
func New(ctx context.Context, dsn string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() { s.pool.Close() }

// Ping reports connectivity for health checks.
func (s *Storage) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Migrate applies the schema. Statements are idempotent so every
// instance can run it at boot.
func (s *Storage) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const schema = `
create table if not exists user_account(
    id bigserial primary key,
    email text unique not null,
    name text not null default '',
    subscribe_to_own_cards boolean not null default false,
    created_at timestamptz not null default now()
);

create table if not exists project(
    id bigserial primary key,
    name text not null,
    created_at timestamptz not null default now()
);

create table if not exists board(
    id bigserial primary key,
    project_id bigint not null references project(id) on delete cascade,
    name text not null,
    created_at timestamptz not null default now()
);
create index if not exists board_project_idx on board(project_id);

create table if not exists board_membership(
    id bigserial primary key,
    board_id bigint not null references board(id) on delete cascade,
    user_id bigint not null references user_account(id) on delete cascade,
    role text not null default 'editor',
    created_at timestamptz not null default now(),
    unique(board_id, user_id)
);
create index if not exists board_membership_user_idx on board_membership(user_id);

create table if not exists list(
    id bigserial primary key,
    board_id bigint not null references board(id) on delete cascade,
    name text not null,
    position bigint not null default 1000,
    created_at timestamptz not null default now()
);
create index if not exists list_board_idx on list(board_id);

create table if not exists card(
    id bigserial primary key,
    list_id bigint not null references list(id) on delete cascade,
    name text not null,
    position bigint not null default 1000,
    created_at timestamptz not null default now()
);
create index if not exists card_list_idx on card(list_id);

create table if not exists card_subscription(
    id bigserial primary key,
    card_id bigint not null references card(id) on delete cascade,
    user_id bigint not null references user_account(id) on delete cascade,
    created_at timestamptz not null default now(),
    unique(card_id, user_id)
);
create index if not exists card_subscription_user_idx on card_subscription(user_id);

create table if not exists task_list(
    id bigserial primary key,
    card_id bigint not null references card(id) on delete cascade,
    name text not null,
    position bigint not null default 1000,
    created_at timestamptz not null default now()
);
create index if not exists task_list_card_idx on task_list(card_id);

create table if not exists task(
    id bigserial primary key,
    task_list_id bigint not null references task_list(id) on delete cascade,
    name text not null check (length(name) > 0),
    position bigint not null default 1000,
    is_completed boolean not null default false,
    assignee_user_id bigint references user_account(id) on delete set null,
    created_at timestamptz not null default now()
);
create index if not exists task_task_list_idx on task(task_list_id);

create table if not exists task_membership(
    id bigserial primary key,
    task_id bigint not null references task(id) on delete cascade,
    user_id bigint not null references user_account(id) on delete cascade,
    created_at timestamptz,
    updated_at timestamptz,
    unique(task_id, user_id)
);
create index if not exists task_membership_task_idx on task_membership(task_id);
create index if not exists task_membership_user_idx on task_membership(user_id);

create table if not exists action(
    id bigserial primary key,
    card_id bigint not null references card(id) on delete cascade,
    user_id bigint not null references user_account(id) on delete cascade,
    type text not null,
    data jsonb not null default '{}',
    created_at timestamptz not null default now()
);
create index if not exists action_card_idx on action(card_id);

create table if not exists webhook(
    id bigserial primary key,
    name text not null default '',
    url text not null,
    access_token text,
    enabled boolean not null default true,
    created_at timestamptz not null default now()
);
`
