package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zutrittswerk/portier/internal/entities"
	"github.com/zutrittswerk/portier/internal/repositories"
)

// InvalidationChannel is the NOTIFY channel used to broadcast cache
// invalidation scopes between engine instances sharing a database.
const InvalidationChannel = "portier_invalidation"

// PostgresStateRepository implements StateRepository using PostgreSQL.
// Table names mirror the original deployment's schema: users, groups,
// doors, door_groups, user_groups, door_in_group, allow_permissions and
// deny_permissions.
type PostgresStateRepository struct {
	db *sql.DB
}

// NewPostgresStateRepository creates a new PostgreSQL state repository.
func NewPostgresStateRepository(db *sql.DB) repositories.StateRepository {
	return &PostgresStateRepository{db: db}
}

// Load reads the complete persisted state.
func (r *PostgresStateRepository) Load(ctx context.Context) (*entities.Dataset, error) {
	dataset := &entities.Dataset{}

	rows, err := r.db.QueryContext(ctx, `SELECT user_id, name, email FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p := &entities.Principal{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		dataset.Principals = append(dataset.Principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dataset.PrincipalGroups, err = r.loadGroups(ctx, `SELECT group_id, name, parent_id FROM groups ORDER BY group_id`)
	if err != nil {
		return nil, err
	}
	dataset.ResourceGroups, err = r.loadGroups(ctx, `SELECT dgroup_id, name, parent_id FROM door_groups ORDER BY dgroup_id`)
	if err != nil {
		return nil, err
	}

	doorRows, err := r.db.QueryContext(ctx, `SELECT door_id, name, location FROM doors ORDER BY door_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load doors: %w", err)
	}
	defer doorRows.Close()
	for doorRows.Next() {
		res := &entities.Resource{}
		if err := doorRows.Scan(&res.ID, &res.Name, &res.Location); err != nil {
			return nil, fmt.Errorf("failed to scan door: %w", err)
		}
		dataset.Resources = append(dataset.Resources, res)
	}
	if err := doorRows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadPairs(ctx, `SELECT user_id, group_id FROM user_groups`, func(a, b int64) {
		dataset.Memberships = append(dataset.Memberships, entities.Membership{PrincipalID: a, GroupID: b})
	}); err != nil {
		return nil, err
	}
	if err := r.loadPairs(ctx, `SELECT door_id, dgroup_id FROM door_in_group`, func(a, b int64) {
		dataset.Groupings = append(dataset.Groupings, entities.Grouping{ResourceID: a, ResourceGroupID: b})
	}); err != nil {
		return nil, err
	}
	if err := r.loadPairs(ctx, `SELECT group_id, dgroup_id FROM allow_permissions`, func(a, b int64) {
		dataset.Allows = append(dataset.Allows, entities.PermissionEdge{GroupID: a, ResourceGroupID: b})
	}); err != nil {
		return nil, err
	}
	if err := r.loadPairs(ctx, `SELECT group_id, dgroup_id FROM deny_permissions`, func(a, b int64) {
		dataset.Denies = append(dataset.Denies, entities.PermissionEdge{GroupID: a, ResourceGroupID: b})
	}); err != nil {
		return nil, err
	}
	return dataset, nil
}

func (r *PostgresStateRepository) loadGroups(ctx context.Context, query string) ([]*entities.Group, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}
	defer rows.Close()

	var groups []*entities.Group
	for rows.Next() {
		g := &entities.Group{}
		var parent sql.NullInt64
		if err := rows.Scan(&g.ID, &g.Name, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		if parent.Valid {
			g.ParentID = &parent.Int64
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *PostgresStateRepository) loadPairs(ctx context.Context, query string, emit func(a, b int64)) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to load edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a, b int64
		if err := rows.Scan(&a, &b); err != nil {
			return fmt.Errorf("failed to scan edge: %w", err)
		}
		emit(a, b)
	}
	return rows.Err()
}

// Import replaces the persisted state with the dataset in one transaction.
func (r *PostgresStateRepository) Import(ctx context.Context, dataset *entities.Dataset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"deny_permissions", "allow_permissions", "door_in_group", "user_groups",
		"doors", "door_groups", "users", "groups",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, g := range dataset.PrincipalGroups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO groups (group_id, name, parent_id) VALUES ($1, $2, $3)`,
			g.ID, g.Name, nullableID(g.ParentID)); err != nil {
			return fmt.Errorf("failed to insert group %d: %w", g.ID, err)
		}
	}
	for _, g := range dataset.ResourceGroups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO door_groups (dgroup_id, name, parent_id) VALUES ($1, $2, $3)`,
			g.ID, g.Name, nullableID(g.ParentID)); err != nil {
			return fmt.Errorf("failed to insert door group %d: %w", g.ID, err)
		}
	}
	for _, p := range dataset.Principals {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (user_id, name, email) VALUES ($1, $2, $3)`,
			p.ID, p.Name, p.Email); err != nil {
			return fmt.Errorf("failed to insert user %d: %w", p.ID, err)
		}
	}
	for _, res := range dataset.Resources {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO doors (door_id, name, location) VALUES ($1, $2, $3)`,
			res.ID, res.Name, res.Location); err != nil {
			return fmt.Errorf("failed to insert door %d: %w", res.ID, err)
		}
	}
	for _, m := range dataset.Memberships {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			m.PrincipalID, m.GroupID); err != nil {
			return fmt.Errorf("failed to insert membership: %w", err)
		}
	}
	for _, g := range dataset.Groupings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO door_in_group (door_id, dgroup_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			g.ResourceID, g.ResourceGroupID); err != nil {
			return fmt.Errorf("failed to insert grouping: %w", err)
		}
	}
	for _, e := range dataset.Allows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO allow_permissions (group_id, dgroup_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			e.GroupID, e.ResourceGroupID); err != nil {
			return fmt.Errorf("failed to insert allow edge: %w", err)
		}
	}
	for _, e := range dataset.Denies {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deny_permissions (group_id, dgroup_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			e.GroupID, e.ResourceGroupID); err != nil {
			return fmt.Errorf("failed to insert deny edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// CreatePrincipal inserts a user row.
func (r *PostgresStateRepository) CreatePrincipal(ctx context.Context, p entities.Principal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_id, name, email) VALUES ($1, $2, $3)`,
		p.ID, p.Name, p.Email)
	if err != nil {
		return fmt.Errorf("failed to insert user %d: %w", p.ID, err)
	}
	return nil
}

// DeletePrincipal removes a user and its membership rows in one transaction.
func (r *PostgresStateRepository) DeletePrincipal(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, id)
		return err
	})
}

// CreateResource inserts a door row.
func (r *PostgresStateRepository) CreateResource(ctx context.Context, res entities.Resource) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO doors (door_id, name, location) VALUES ($1, $2, $3)`,
		res.ID, res.Name, res.Location)
	if err != nil {
		return fmt.Errorf("failed to insert door %d: %w", res.ID, err)
	}
	return nil
}

// DeleteResource removes a door and its grouping rows in one transaction.
func (r *PostgresStateRepository) DeleteResource(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM door_in_group WHERE door_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM doors WHERE door_id = $1`, id)
		return err
	})
}

// CreateGroup inserts a group row into the selected hierarchy table.
func (r *PostgresStateRepository) CreateGroup(ctx context.Context, kind repositories.HierarchyKind, g entities.Group) error {
	table, idColumn := groupTable(kind)
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, name, parent_id) VALUES ($1, $2, $3)`, table, idColumn),
		g.ID, g.Name, nullableID(g.ParentID))
	if err != nil {
		return fmt.Errorf("failed to insert %s group %d: %w", kind, g.ID, err)
	}
	return nil
}

// RenameGroup updates a group's display name.
func (r *PostgresStateRepository) RenameGroup(ctx context.Context, kind repositories.HierarchyKind, id int64, name string) error {
	table, idColumn := groupTable(kind)
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET name = $1 WHERE %s = $2`, table, idColumn),
		name, id)
	if err != nil {
		return fmt.Errorf("failed to rename %s group %d: %w", kind, id, err)
	}
	return nil
}

// ReparentGroup updates a group's parent pointer.
func (r *PostgresStateRepository) ReparentGroup(ctx context.Context, kind repositories.HierarchyKind, id int64, parentID *int64) error {
	table, idColumn := groupTable(kind)
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET parent_id = $1 WHERE %s = $2`, table, idColumn),
		nullableID(parentID), id)
	if err != nil {
		return fmt.Errorf("failed to reparent %s group %d: %w", kind, id, err)
	}
	return nil
}

// DeleteGroup removes a group row, cascading its edges in one transaction.
func (r *PostgresStateRepository) DeleteGroup(ctx context.Context, kind repositories.HierarchyKind, id int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if kind == repositories.PrincipalGroups {
			if _, err := tx.ExecContext(ctx, `DELETE FROM user_groups WHERE group_id = $1`, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM allow_permissions WHERE group_id = $1`, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM deny_permissions WHERE group_id = $1`, id); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE group_id = $1`, id)
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM door_in_group WHERE dgroup_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM allow_permissions WHERE dgroup_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM deny_permissions WHERE dgroup_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM door_groups WHERE dgroup_id = $1`, id)
		return err
	})
}

// AddMembership inserts a user-group row, idempotently.
func (r *PostgresStateRepository) AddMembership(ctx context.Context, m entities.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		m.PrincipalID, m.GroupID)
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// RemoveMembership deletes a user-group row.
func (r *PostgresStateRepository) RemoveMembership(ctx context.Context, m entities.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_groups WHERE user_id = $1 AND group_id = $2`,
		m.PrincipalID, m.GroupID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return nil
}

// AddGrouping inserts a door-in-group row, idempotently.
func (r *PostgresStateRepository) AddGrouping(ctx context.Context, g entities.Grouping) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO door_in_group (door_id, dgroup_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		g.ResourceID, g.ResourceGroupID)
	if err != nil {
		return fmt.Errorf("failed to insert grouping: %w", err)
	}
	return nil
}

// RemoveGrouping deletes a door-in-group row.
func (r *PostgresStateRepository) RemoveGrouping(ctx context.Context, g entities.Grouping) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM door_in_group WHERE door_id = $1 AND dgroup_id = $2`,
		g.ResourceID, g.ResourceGroupID)
	if err != nil {
		return fmt.Errorf("failed to delete grouping: %w", err)
	}
	return nil
}

// AddPermission inserts an allow or deny row, idempotently.
func (r *PostgresStateRepository) AddPermission(ctx context.Context, effect entities.Effect, edge entities.PermissionEdge) error {
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (group_id, dgroup_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, permissionTable(effect)),
		edge.GroupID, edge.ResourceGroupID)
	if err != nil {
		return fmt.Errorf("failed to insert %s edge %s: %w", effect, edge, err)
	}
	return nil
}

// RemovePermission deletes an allow or deny row.
func (r *PostgresStateRepository) RemovePermission(ctx context.Context, effect entities.Effect, edge entities.PermissionEdge) error {
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE group_id = $1 AND dgroup_id = $2`, permissionTable(effect)),
		edge.GroupID, edge.ResourceGroupID)
	if err != nil {
		return fmt.Errorf("failed to delete %s edge %s: %w", effect, edge, err)
	}
	return nil
}

// PublishInvalidation broadcasts an invalidation scope via NOTIFY so other
// engine instances sharing this database drop their cached sets.
func (r *PostgresStateRepository) PublishInvalidation(ctx context.Context, scope string) error {
	_, err := r.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, InvalidationChannel, scope)
	if err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

func (r *PostgresStateRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func groupTable(kind repositories.HierarchyKind) (table, idColumn string) {
	if kind == repositories.ResourceGroups {
		return "door_groups", "dgroup_id"
	}
	return "groups", "group_id"
}

func permissionTable(effect entities.Effect) string {
	if effect == entities.EffectDeny {
		return "deny_permissions"
	}
	return "allow_permissions"
}
