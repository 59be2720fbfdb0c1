package postgres

import (
	"context"

	"github.com/invoicekit/invoicekit/internal/domain/client"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/postgres"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/lib/pq"
)

const clientColumns = `id, user_id, name, email, company, address, phone, metadata,
	created_at, updated_at, created_by, updated_by`

var clientSortColumns = map[string]string{
	"created_at": "created_at",
	"name":       "name",
	"email":      "email",
}

type clientRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewClientRepository(db *postgres.DB, logger *logger.Logger) client.Repository {
	return &clientRepository{db: db, logger: logger}
}

func (r *clientRepository) Create(ctx context.Context, c *client.Client) error {
	query := `
		INSERT INTO clients (` + clientColumns + `) VALUES (
			:id, :user_id, :name, :email, :company, :address, :phone, :metadata,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating client",
		"client_id", c.ID,
		"user_id", c.UserID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return dbError(err, "failed to create client")
	}
	return nil
}

func (r *clientRepository) Get(ctx context.Context, id string) (*client.Client, error) {
	var c client.Client
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1 AND user_id = $2`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &c, query, id, types.GetUserID(ctx)); err != nil {
		return nil, notFoundOr(err, "Client", id)
	}
	return &c, nil
}

func (r *clientRepository) Update(ctx context.Context, c *client.Client) error {
	query := `
		UPDATE clients SET
			name = :name,
			email = :email,
			company = :company,
			address = :address,
			phone = :phone,
			metadata = :metadata,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND user_id = :user_id`

	result, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return dbError(err, "failed to update client")
	}
	return requireAffected(result, "Client", c.ID)
}

func (r *clientRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx,
		`DELETE FROM clients WHERE id = $1 AND user_id = $2`, id, types.GetUserID(ctx))
	if err != nil {
		return dbError(err, "failed to delete client")
	}
	return requireAffected(result, "Client", id)
}

func (r *clientRepository) List(ctx context.Context, filter *types.ClientFilter) ([]*client.Client, error) {
	if filter == nil {
		filter = types.NewClientFilter()
	}
	qf := filter.QueryFilter
	if qf == nil {
		qf = types.NewDefaultQueryFilter()
	}

	w := r.buildWhere(ctx, filter)
	query := `SELECT ` + clientColumns + ` FROM clients` + w.String() +
		w.page(sortColumn(qf.GetSort(), clientSortColumns), qf.GetOrder(),
			filter.GetLimit(), filter.GetOffset(), filter.IsUnlimited())

	var clients []*client.Client
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &clients, query, w.args...); err != nil {
		return nil, dbError(err, "failed to list clients")
	}
	return clients, nil
}

func (r *clientRepository) Count(ctx context.Context, filter *types.ClientFilter) (int, error) {
	if filter == nil {
		filter = types.NewClientFilter()
	}
	w := r.buildWhere(ctx, filter)

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM clients`+w.String(), w.args...); err != nil {
		return 0, dbError(err, "failed to count clients")
	}
	return count, nil
}

func (r *clientRepository) buildWhere(ctx context.Context, filter *types.ClientFilter) *whereBuilder {
	w := &whereBuilder{}
	w.add("user_id = ?", types.GetUserID(ctx))
	if len(filter.ClientIDs) > 0 {
		w.add("id = ANY(?)", pq.StringArray(filter.ClientIDs))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR email ILIKE ? OR company ILIKE ?)", pattern, pattern, pattern)
	}
	return w
}
